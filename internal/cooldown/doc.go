// Package cooldown throttles repeated actions per key.
//
// A Window lets a key act once, then refuses it until the configured
// duration has passed. Keys are kept in insertion order so that expired
// keys are pruned and, at capacity, the oldest key is evicted in O(1).
package cooldown
