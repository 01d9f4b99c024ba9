// Package chat holds the conversation state of the chat view.
//
// Send appends the user message immediately and streams the assistant reply
// in the background. While the reply streams, partial text is only visible
// through Streaming(); the assistant message is appended once, after the
// stream completes. A failed stream appends a synthetic assistant message
// starting with a warning marker instead.
//
// The first completed reply binds the conversation id used by every later
// Send until Reset.
package chat
