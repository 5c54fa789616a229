// Package citation reconciles retrieval sources into the conversation
// record after a retrieval-augmented exchange completes.
//
// Reconciliation runs only when the exchange carried the retrieval flag.
// It is best-effort by design: the exchange has already succeeded by the
// time the secondary search runs, so any failure here is logged and the
// assistant message is simply left without citations.
//
// The attachment target is the session/message pair captured when the
// exchange finalized, never "whatever is currently rendered last".
package citation
