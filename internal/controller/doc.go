// Package controller binds user intents to the session store and the
// streaming backend.
//
// # Exchange Lifecycle
//
// Send runs one exchange end to end: trim and validate the input, append
// the user message to the active session, stream the reply while emitting
// cumulative progress updates, append the final assistant message, and
// reconcile citations when retrieval augmentation is on. The active
// session id is captured once at the start of Send and carried through
// every later step, so switching sessions while a reply is streaming
// never misattributes the result.
//
// # Concurrency Slot
//
// A single atomic flag guards the whole exchange pipeline. A second Send
// while the flag is held returns ErrExchangeInFlight immediately; the
// flag is released on every exit path, including failures and
// cancellation. Session management operations (new, switch, clear) do
// not take the slot and remain available while a reply streams.
package controller
