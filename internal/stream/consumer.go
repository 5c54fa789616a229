// ABOUTME: Per-exchange stream consumer: one request, incremental decode, progress.
// ABOUTME: State machine Idle -> Requesting -> Streaming -> Finalized with Failed/Cancelled exits.

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/2389/granite-client/internal/backend"
)

// readBufferSize is the chunk size for reading the response body.
const readBufferSize = 4096

// State is the consumer's position in the exchange lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateFinalized
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChatStreamer issues one generation exchange. Implemented by the backend
// client; tests substitute fakes.
type ChatStreamer interface {
	ChatStream(ctx context.Context, req backend.ChatRequest) (io.ReadCloser, error)
}

// Consumer performs exactly one request/response exchange and exposes the
// incrementally decoded reply. One Consumer per exchange: it carries the
// exchange's identity so a session switch mid-stream cannot misattribute
// the result.
type Consumer struct {
	streamer ChatStreamer
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a consumer for a single exchange.
func New(streamer ChatStreamer, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		streamer: streamer,
		logger:   logger.With("component", "stream"),
	}
}

// State returns the consumer's current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run issues the exchange and consumes the chunked body, invoking onUpdate
// with the cumulative text after each decoded fragment. Updates grow
// monotonically and are never truncated mid-rune. The accumulated text is
// returned at EOF; an empty reply is a valid, if degenerate, outcome.
//
// Cancelling ctx mid-stream closes the body read and returns the context
// error; the body is closed on every path.
func (c *Consumer) Run(ctx context.Context, req backend.ChatRequest, onUpdate func(string)) (string, error) {
	c.setState(StateRequesting)

	body, err := c.streamer.ChatStream(ctx, req)
	if err != nil {
		c.setState(StateFailed)
		return "", fmt.Errorf("starting exchange: %w", err)
	}
	defer body.Close()

	c.setState(StateStreaming)

	var (
		dec   Decoder
		total string
		buf   = make([]byte, readBufferSize)
	)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if fragment := dec.Write(buf[:n]); fragment != "" {
				total += fragment
				if onUpdate != nil {
					onUpdate(total)
				}
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			if tail := dec.Flush(); tail != "" {
				total += tail
				if onUpdate != nil {
					onUpdate(total)
				}
			}
			c.setState(StateFinalized)
			c.logger.Debug("exchange finalized",
				"session_id", req.SessionID,
				"chars", len(total))
			return total, nil
		}

		if ctx.Err() != nil {
			c.setState(StateCancelled)
			c.logger.Debug("exchange cancelled", "session_id", req.SessionID)
			return total, ctx.Err()
		}

		c.setState(StateFailed)
		return total, fmt.Errorf("reading stream: %w", readErr)
	}
}
