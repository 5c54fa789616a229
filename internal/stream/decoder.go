// ABOUTME: Stateful incremental UTF-8 decoder for chunked response bodies.
// ABOUTME: Multi-byte runes split across chunk boundaries are never corrupted.

package stream

import (
	"strings"
	"unicode/utf8"
)

// Decoder turns an arbitrarily-chunked UTF-8 byte sequence into text.
// Bytes that form the beginning of an incomplete rune are held back until
// the rest of the rune arrives (or Flush is called). Splitting a byte
// sequence at any boundaries and feeding the pieces through Write yields
// the same text as decoding the whole sequence at once.
type Decoder struct {
	pending []byte
}

// Write absorbs the next chunk and returns the newly decodable text, which
// may be empty when the chunk ends inside a multi-byte rune.
func (d *Decoder) Write(p []byte) string {
	d.pending = append(d.pending, p...)

	n := completeLen(d.pending)
	if n == 0 {
		return ""
	}

	out := string(d.pending[:n])
	rest := len(d.pending) - n
	copy(d.pending, d.pending[n:])
	d.pending = d.pending[:rest]
	return out
}

// Flush returns whatever is still held back. A dangling partial rune at
// end of stream decodes to the replacement character rather than raw
// bytes.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(d.pending), string(utf8.RuneError))
	d.pending = d.pending[:0]
	return out
}

// completeLen returns the length of the longest prefix of b that does not
// end inside a multi-byte rune. Only the final rune can be incomplete, so
// it is enough to inspect the last utf8.UTFMax bytes.
func completeLen(b []byte) int {
	end := len(b)
	if end == 0 {
		return 0
	}

	// ASCII fast path
	if b[end-1] < utf8.RuneSelf {
		return end
	}

	// Walk back to the start byte of the final rune
	start := end - 1
	for start > 0 && end-start < utf8.UTFMax && !utf8.RuneStart(b[start]) {
		start--
	}

	if !utf8.RuneStart(b[start]) {
		// No start byte in range: stray continuation bytes, nothing more
		// is coming that could complete them
		return end
	}

	if utf8.FullRune(b[start:]) {
		return end
	}
	return start
}
