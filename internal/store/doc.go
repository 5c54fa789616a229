// Package store persists the multi-session conversation state.
//
// # Overview
//
// The Store keeps every session and the active-session pointer in memory
// and writes the whole state through to a Backend as one versioned record
// after every mutation (create, switch, append, clear, citation
// attachment). The in-memory state is the single source of truth; the
// record is a durable mirror.
//
// # Failure model
//
//   - Load: an absent, garbled, or inconsistent record reinitializes the
//     store with one synthesized session. Open never returns an error.
//   - Save: a write failure (quota, locked file, missing disk) is logged
//     and swallowed; the controller keeps running on in-memory state.
//
// # Versioning
//
// Records are keyed by the version-qualified RecordKey. A reader that
// encounters a record from another version falls back to initialization
// rather than attempting partial repair.
package store
