// ABOUTME: Session type and title derivation rules.
// ABOUTME: A session owns an ordered message sequence and a once-derived title.

package chat

import "strings"

// SentinelTitle is the placeholder title a session carries until the first
// user message arrives. Clearing a session resets the title back to it,
// re-arming derivation.
const SentinelTitle = "New chat"

// titleMaxRunes bounds the derived title display length, not counting the
// ellipsis marker.
const titleMaxRunes = 40

// Session is one isolated, titled conversation thread.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// NewSession returns an empty session with the sentinel title.
// The caller supplies the id; ids are generated once and never reused.
func NewSession(id string) *Session {
	return &Session{
		ID:    id,
		Title: SentinelTitle,
	}
}

// HasDerivedTitle reports whether the title has been set away from the
// sentinel. Once derived it is never overwritten.
func (s *Session) HasDerivedTitle() bool {
	return s.Title != SentinelTitle
}

// DeriveTitle produces a session title from the first user message:
// whitespace-collapsed and truncated to a bounded display length with an
// ellipsis marker.
func DeriveTitle(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return SentinelTitle
	}

	runes := []rune(collapsed)
	if len(runes) <= titleMaxRunes {
		return collapsed
	}
	return string(runes[:titleMaxRunes]) + "..."
}
