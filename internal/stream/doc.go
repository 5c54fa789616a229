// Package stream consumes one chunked generation response at a time.
//
// # Lifecycle
//
// A Consumer moves through Idle -> Requesting -> Streaming -> Finalized,
// with error exits to Failed from either active state and a Cancelled exit
// driven by context cancellation. One Consumer serves exactly one
// exchange.
//
// # Decoding
//
// The response body is plain UTF-8 text with no framing; chunk boundaries
// land anywhere, including inside multi-byte runes. Decoder holds back the
// bytes of an incomplete trailing rune until the rest arrives, so the
// cumulative text handed to the progress callback is always valid and
// only ever grows.
package stream
