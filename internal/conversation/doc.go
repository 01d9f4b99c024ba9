// Package conversation provides the chat service behind the mock API.
//
// The Service sits between the HTTP handlers and a Responder. For each user
// message it:
//
//  1. Resolves the conversation, or creates one titled after the message
//  2. Saves the user message before asking for a reply
//  3. Forwards reply chunks to the caller as they arrive
//  4. Saves the assistant message when the reply is done
//
// The returned Stream ends with exactly one Done or Error event, or with
// nothing if the responder stops early. Callers turn those events into SSE
// frames.
//
// CannedResponder answers from a keyword table. It stands in for the
// retrieval-augmented model of the production backend so that the
// terminal client can be exercised end to end.
package conversation
