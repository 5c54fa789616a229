// ABOUTME: Orchestrates user intents across the store, stream consumer, and reconciler.
// ABOUTME: Owns the single global concurrency slot: one exchange at a time.

package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/2389/granite-client/internal/backend"
	"github.com/2389/granite-client/internal/chat"
	"github.com/2389/granite-client/internal/citation"
	"github.com/2389/granite-client/internal/store"
	"github.com/2389/granite-client/internal/stream"
	"github.com/2389/granite-client/internal/voice"
)

// ErrExchangeInFlight indicates another exchange holds the concurrency
// slot. The caller should surface this as "still responding" rather than
// queueing.
var ErrExchangeInFlight = errors.New("an exchange is already in progress")

// ErrEmptyMessage indicates the message was empty after trimming; nothing
// was appended and no exchange started.
var ErrEmptyMessage = errors.New("message is empty")

// clearAck is the acknowledgement appended after clearing a session.
const clearAck = "Session cleared. Ask me anything to start fresh."

// Backend is what the controller needs from the generation service.
type Backend interface {
	ChatStream(ctx context.Context, req backend.ChatRequest) (io.ReadCloser, error)
	Search(ctx context.Context, query string, topK int) ([]backend.SearchResult, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Update is a progress event for one exchange. SessionID identifies the
// session the exchange was issued against, captured at send time; the
// rendering layer compares it with the currently active session to decide
// whether to paint.
type Update struct {
	ExchangeID string
	SessionID  string
	Text       string
}

// ProgressFunc receives cumulative text updates during streaming.
type ProgressFunc func(Update)

// Options are the exchange defaults, adjustable at runtime.
type Options struct {
	Mode        string
	UseRAG      bool
	TopK        int
	VoiceOutput bool
}

// Controller binds user intents (send, switch, clear, new) to the session
// store and the streaming exchange machinery.
type Controller struct {
	store    *store.Store
	backend  Backend
	speaker  voice.Speaker
	reconcil *citation.Reconciler
	logger   *slog.Logger

	// busy is the global concurrency slot: checked and set atomically at
	// the start of Send, released on every exit path.
	busy atomic.Bool

	mu         sync.Mutex
	opts       Options
	onProgress ProgressFunc
}

// New creates a controller. speaker may be nil (voice output absent).
func New(st *store.Store, be Backend, speaker voice.Speaker, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = backend.ModeGeneral
	}
	if opts.TopK < 1 {
		opts.TopK = 4
	}
	return &Controller{
		store:    st,
		backend:  be,
		speaker:  speaker,
		reconcil: citation.New(be, st, logger),
		logger:   logger.With("component", "controller"),
		opts:     opts,
	}
}

// SetProgress installs the renderer callback for streaming updates. Safe
// to call while an exchange is streaming; later updates use the new
// callback.
func (c *Controller) SetProgress(fn ProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = fn
}

// Busy reports whether an exchange currently holds the concurrency slot.
// The send affordance should be disabled while this is true.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Options returns a snapshot of the current exchange defaults.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// SetUseRAG toggles retrieval augmentation for subsequent exchanges.
func (c *Controller) SetUseRAG(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.UseRAG = on
}

// SetVoiceOutput toggles speech synthesis of final replies.
func (c *Controller) SetVoiceOutput(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.VoiceOutput = on
	if !on && c.speaker != nil {
		c.speaker.Stop()
	}
}

// SetMode selects the generation mode tag for subsequent exchanges.
func (c *Controller) SetMode(mode string) error {
	if !backend.ValidMode(mode) {
		return fmt.Errorf("unknown mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Mode = mode
	return nil
}

// Send runs one full exchange against the currently active session:
// append the user message, stream the reply, append the assistant
// message, then reconcile citations when retrieval was on.
//
// The session id is captured here, before any suspension point, and
// threaded through every continuation: switching sessions mid-stream
// cannot misattribute the result. While an exchange is running a second
// Send returns ErrExchangeInFlight; the slot is released on every exit
// path.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	if !c.busy.CompareAndSwap(false, true) {
		return ErrExchangeInFlight
	}
	defer c.busy.Store(false)

	opts := c.Options()
	sessionID := c.store.ActiveID()
	exchangeID := uuid.New().String()

	// The user message lands in the record before any network activity
	if _, err := c.store.AppendMessage(sessionID, chat.Message{Role: chat.RoleUser, Text: text}); err != nil {
		return fmt.Errorf("recording user message: %w", err)
	}

	c.logger.Debug("exchange started",
		"exchange_id", exchangeID,
		"session_id", sessionID,
		"use_rag", opts.UseRAG,
		"mode", opts.Mode)

	consumer := stream.New(c.backend, c.logger)
	final, err := consumer.Run(ctx, backend.ChatRequest{
		SessionID: sessionID,
		Message:   text,
		UseRAG:    opts.UseRAG,
		Mode:      opts.Mode,
	}, func(cumulative string) {
		c.emit(Update{ExchangeID: exchangeID, SessionID: sessionID, Text: cumulative})
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Keep whatever partial reply the user watched arrive
			c.appendAssistant(sessionID, final)
			return err
		}
		failure := fmt.Sprintf("[error] %v", err)
		c.appendAssistant(sessionID, failure)
		c.emit(Update{ExchangeID: exchangeID, SessionID: sessionID, Text: failure})
		return fmt.Errorf("exchange failed: %w", err)
	}

	// Exactly one assistant append per exchange, empty reply included
	index, appendErr := c.store.AppendMessage(sessionID, chat.Message{Role: chat.RoleAssistant, Text: final})
	if appendErr != nil {
		return fmt.Errorf("recording assistant message: %w", appendErr)
	}

	if opts.VoiceOutput && c.speaker != nil {
		c.speaker.Speak(final)
	}

	if opts.UseRAG {
		c.reconcil.Reconcile(ctx, citation.Target{
			SessionID:    sessionID,
			MessageIndex: index,
		}, text, opts.TopK)
	}

	return nil
}

// NewSession creates a fresh session and makes it active.
func (c *Controller) NewSession() string {
	return c.store.CreateSession()
}

// SwitchSession makes the named session active; unknown ids are ignored.
func (c *Controller) SwitchSession(id string) {
	c.store.SwitchActive(id)
}

// ClearSession empties the active session, appends an acknowledgement,
// and asks the backend to drop its server-side memory. The backend call
// is best-effort: failure is logged, never surfaced.
func (c *Controller) ClearSession(ctx context.Context) error {
	sessionID := c.store.ActiveID()
	if err := c.store.Clear(sessionID); err != nil {
		return err
	}

	c.appendAssistant(sessionID, clearAck)

	if err := c.backend.ClearSession(ctx, sessionID); err != nil {
		c.logger.Warn("backend session clear failed",
			"error", err,
			"session_id", sessionID)
	}
	return nil
}

func (c *Controller) appendAssistant(sessionID, text string) {
	if _, err := c.store.AppendMessage(sessionID, chat.Message{Role: chat.RoleAssistant, Text: text}); err != nil {
		c.logger.Error("failed to record assistant message",
			"error", err,
			"session_id", sessionID)
	}
}

func (c *Controller) emit(u Update) {
	c.mu.Lock()
	fn := c.onProgress
	c.mu.Unlock()

	if fn != nil {
		fn(u)
	}
}
