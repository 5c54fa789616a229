// ABOUTME: Tests for session title derivation and sentinel behavior.
// ABOUTME: Covers whitespace collapsing, truncation bounds, and re-arming.

package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", DeriveTitle("  hello   world  "))
	assert.Equal(t, "a b c", DeriveTitle("a\tb\nc"))
}

func TestDeriveTitle_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "what is Go?", DeriveTitle("what is Go?"))
}

func TestDeriveTitle_TruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("word ", 30)
	title := DeriveTitle(long)

	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len([]rune(title)), 43)
}

func TestDeriveTitle_TruncationCountsRunes(t *testing.T) {
	// 50 multi-byte runes must truncate at 40 runes, not 40 bytes
	long := strings.Repeat("é", 50)
	title := DeriveTitle(long)

	assert.Equal(t, strings.Repeat("é", 40)+"...", title)
}

func TestDeriveTitle_BlankFallsBackToSentinel(t *testing.T) {
	assert.Equal(t, SentinelTitle, DeriveTitle("   "))
	assert.Equal(t, SentinelTitle, DeriveTitle(""))
}

func TestSession_HasDerivedTitle(t *testing.T) {
	s := NewSession("abc")
	assert.False(t, s.HasDerivedTitle())

	s.Title = DeriveTitle("first message")
	assert.True(t, s.HasDerivedTitle())

	s.Title = SentinelTitle
	assert.False(t, s.HasDerivedTitle())
}
