// ABOUTME: Session store: in-memory source of truth with write-through persistence.
// ABOUTME: The whole state is saved as one versioned record after every mutation.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/granite-client/internal/chat"
)

// RecordKey is the version-qualified key the session state is persisted
// under. Bumping the version abandons older records: readers fall back to
// initialization instead of attempting partial repair.
const RecordKey = "granite.sessions.v1"

// persistTimeout bounds a single write-through save.
const persistTimeout = 5 * time.Second

// ErrSessionNotFound indicates the named session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrMessageNotFound indicates a message index is out of range.
var ErrMessageNotFound = errors.New("message not found")

// snapshot is the serialized shape of the whole store state.
type snapshot struct {
	ActiveSessionID string                   `json:"active_session_id"`
	Sessions        map[string]*chat.Session `json:"sessions"`
	Order           []string                 `json:"order"`
}

// Store holds every session and the active-session pointer. It is the
// single source of truth for the conversation record; the renderer and the
// stream consumer observe the active session through it.
//
// Invariant: while sessions is non-empty, active always references an
// existing key.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	logger   *slog.Logger
	active   string
	sessions map[string]*chat.Session
	order    []string
}

// Open loads the persisted state from the backend, or initializes a fresh
// state with one synthesized session when the record is absent or garbled.
// It never returns a load error to the caller: a broken record fails soft
// into reinitialization.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend: backend,
		logger:  logger.With("component", "store"),
	}

	blob, err := backend.LoadRecord(ctx, RecordKey)
	if err != nil {
		s.logger.Warn("loading persisted state failed, reinitializing", "error", err)
	}

	if err == nil && len(blob) > 0 {
		var snap snapshot
		if jsonErr := json.Unmarshal(blob, &snap); jsonErr != nil {
			s.logger.Warn("persisted state is malformed, reinitializing", "error", jsonErr)
		} else if s.restore(&snap) {
			s.logger.Debug("session state restored",
				"sessions", len(s.sessions),
				"active", s.active)
			return s
		} else {
			s.logger.Warn("persisted state is inconsistent, reinitializing")
		}
	}

	s.sessions = make(map[string]*chat.Session)
	s.initDefaultSession()
	s.persist()
	return s
}

// restore adopts a decoded snapshot if it is internally consistent.
func (s *Store) restore(snap *snapshot) bool {
	if len(snap.Sessions) == 0 {
		return false
	}
	if _, ok := snap.Sessions[snap.ActiveSessionID]; !ok {
		return false
	}
	// JSON null decodes to a nil pointer without an unmarshal error; a
	// snapshot carrying one is as garbled as unparseable bytes.
	for id, sess := range snap.Sessions {
		if sess == nil || sess.ID == "" || sess.ID != id {
			return false
		}
	}

	// Rebuild the creation order, tolerating records written before the
	// order field existed.
	order := make([]string, 0, len(snap.Sessions))
	seen := make(map[string]bool)
	for _, id := range snap.Order {
		if _, ok := snap.Sessions[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for id := range snap.Sessions {
		if !seen[id] {
			order = append(order, id)
		}
	}

	s.sessions = snap.Sessions
	s.order = order
	s.active = snap.ActiveSessionID
	return true
}

// initDefaultSession synthesizes the one session an empty store must have.
// Caller holds the lock or is single-threaded during Open.
func (s *Store) initDefaultSession() string {
	id := uuid.New().String()
	s.sessions[id] = chat.NewSession(id)
	s.order = append(s.order, id)
	s.active = id
	return id
}

// persist writes the whole state as one record. A write failure is logged
// and swallowed: the in-memory state stays authoritative and the
// controller must never crash on a full or unavailable backing store.
// Caller holds the lock.
func (s *Store) persist() {
	snap := snapshot{
		ActiveSessionID: s.active,
		Sessions:        s.sessions,
		Order:           s.order,
	}
	blob, err := json.Marshal(&snap)
	if err != nil {
		s.logger.Error("failed to encode session state", "error", err)
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.backend.SaveRecord(saveCtx, RecordKey, blob); err != nil {
		s.logger.Warn("failed to persist session state, continuing in memory",
			"error", err)
	}
}

// ActiveID returns the active session id.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Session returns a copy of the named session.
func (s *Store) Session(id string) (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, false
	}
	return copySession(sess), true
}

// Active returns a copy of the active session.
func (s *Store) Active() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.sessions[s.active])
}

// Sessions returns copies of all sessions in creation order.
func (s *Store) Sessions() []chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copySession(s.sessions[id]))
	}
	return out
}

// CreateSession inserts a fresh session with the sentinel title, makes it
// active, persists, and returns its id. Ids are never reused.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.sessions[id] = chat.NewSession(id)
	s.order = append(s.order, id)
	s.active = id
	s.persist()

	s.logger.Debug("session created", "session_id", id)
	return id
}

// SwitchActive updates the active pointer. An unknown id is a silent no-op
// so the invariant can never dangle.
func (s *Store) SwitchActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		s.logger.Debug("ignoring switch to unknown session", "session_id", id)
		return
	}
	s.active = id
	s.persist()
}

// AppendMessage appends to the named session's message sequence and
// returns the index of the appended message. If this is the first user
// message while the title is still the sentinel, the title is derived.
func (s *Store) AppendMessage(sessionID string, msg chat.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}

	sess.Messages = append(sess.Messages, msg)
	index := len(sess.Messages) - 1

	if msg.Role == chat.RoleUser && !sess.HasDerivedTitle() {
		sess.Title = chat.DeriveTitle(msg.Text)
	}

	s.persist()
	return index, nil
}

// AttachCitations sets the citations on one message. Attachment targets a
// session/message pair captured at exchange start, never "whatever is
// currently active".
func (s *Store) AttachCitations(sessionID string, index int, citations []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if index < 0 || index >= len(sess.Messages) {
		return ErrMessageNotFound
	}

	sess.Messages[index].Citations = citations
	s.persist()
	return nil
}

// Clear empties the named session's messages and resets the title to the
// sentinel, re-arming title derivation. Other sessions are untouched.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	sess.Messages = nil
	sess.Title = chat.SentinelTitle
	s.persist()

	s.logger.Debug("session cleared", "session_id", sessionID)
	return nil
}

// copySession returns a deep enough copy that callers cannot mutate the
// stored message sequence.
func copySession(sess *chat.Session) chat.Session {
	out := chat.Session{
		ID:    sess.ID,
		Title: sess.Title,
	}
	if len(sess.Messages) > 0 {
		out.Messages = make([]chat.Message, len(sess.Messages))
		copy(out.Messages, sess.Messages)
	}
	return out
}
