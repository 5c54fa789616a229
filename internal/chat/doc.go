// Package chat defines the pure conversation model: messages, roles, and
// sessions.
//
// # Invariants
//
//   - Message order within a session is conversation order and is never
//     reordered.
//   - A message is immutable once appended, with one exception: retrieval
//     citations may be attached to an assistant message after the fact.
//   - A session title starts as the sentinel "New chat" and is derived
//     exactly once from the first user message. Clearing a session resets
//     the title to the sentinel, which re-arms derivation.
//
// The types here carry no locking and no persistence; the store package
// owns both.
package chat
