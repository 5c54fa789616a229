// ABOUTME: Post-hoc citation reconciliation for completed exchanges.
// ABOUTME: Attaches retrieval source labels to the exact message the exchange produced.

package citation

import (
	"context"
	"log/slog"

	"github.com/2389/granite-client/internal/backend"
)

// Searcher issues the secondary retrieval request. Implemented by the
// backend client.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]backend.SearchResult, error)
}

// Attacher sets citations on a stored message. Implemented by the session
// store.
type Attacher interface {
	AttachCitations(sessionID string, index int, citations []string) error
}

// Target identifies the assistant message an exchange produced. It is
// captured when the exchange completes, so a session switch between
// stream completion and reconciliation cannot redirect the attachment.
type Target struct {
	SessionID    string
	MessageIndex int
}

// Reconciler merges retrieval sources into the conversation record after a
// retrieval-augmented exchange completes.
type Reconciler struct {
	searcher Searcher
	store    Attacher
	logger   *slog.Logger
}

// New creates a reconciler.
func New(searcher Searcher, store Attacher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		searcher: searcher,
		store:    store,
		logger:   logger.With("component", "citation"),
	}
}

// Reconcile queries retrieval with the exchange's original user text and
// attaches the deduplicated source labels to the target message. Failure
// is not fatal to the exchange: it is logged and the message simply keeps
// no citations.
func (r *Reconciler) Reconcile(ctx context.Context, target Target, query string, topK int) {
	results, err := r.searcher.Search(ctx, query, topK)
	if err != nil {
		r.logger.Warn("citation fetch failed, leaving message uncited",
			"error", err,
			"session_id", target.SessionID)
		return
	}

	sources := Sources(results)
	if len(sources) == 0 {
		return
	}

	if err := r.store.AttachCitations(target.SessionID, target.MessageIndex, sources); err != nil {
		r.logger.Warn("citation attachment failed",
			"error", err,
			"session_id", target.SessionID,
			"message_index", target.MessageIndex)
	}
}

// Sources extracts source labels from retrieval hits, deduplicated with
// order of first occurrence preserved.
func Sources(results []backend.SearchResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, res := range results {
		if res.Source == "" || seen[res.Source] {
			continue
		}
		seen[res.Source] = true
		out = append(out, res.Source)
	}
	return out
}
