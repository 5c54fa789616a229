// ABOUTME: Tests for the session store: invariants, round-trips, soft failure.
// ABOUTME: Runs against a real SQLite backend in a temp dir plus failing mocks.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/granite-client/internal/chat"
)

func createTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	b, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// failingBackend simulates persistent storage that cannot be written.
type failingBackend struct {
	loadBlob []byte
	loadErr  error
	saveErr  error
	saves    int
}

func (f *failingBackend) LoadRecord(ctx context.Context, key string) ([]byte, error) {
	return f.loadBlob, f.loadErr
}

func (f *failingBackend) SaveRecord(ctx context.Context, key string, blob []byte) error {
	f.saves++
	return f.saveErr
}

func (f *failingBackend) Close() error { return nil }

func TestOpen_FreshStateSynthesizesSession(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)

	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, chat.SentinelTitle, sessions[0].Title)
	assert.Empty(t, sessions[0].Messages)
	assert.Equal(t, sessions[0].ID, s.ActiveID())
}

func TestOpen_RoundTrip(t *testing.T) {
	backend := createTestBackend(t)
	ctx := context.Background()

	s := Open(ctx, backend, nil)
	first := s.ActiveID()
	_, err := s.AppendMessage(first, chat.Message{Role: chat.RoleUser, Text: "hello there"})
	require.NoError(t, err)
	_, err = s.AppendMessage(first, chat.Message{
		Role:      chat.RoleAssistant,
		Text:      "hi",
		Citations: []string{"doc.pdf"},
	})
	require.NoError(t, err)

	second := s.CreateSession()
	s.SwitchActive(first)

	// A second store over the same backend must observe identical state
	reloaded := Open(ctx, backend, nil)
	assert.Equal(t, first, reloaded.ActiveID())

	sessions := reloaded.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, []string{sessions[0].ID, sessions[1].ID}, []string{first, second})

	got, ok := reloaded.Session(first)
	require.True(t, ok)
	assert.Equal(t, "hello there", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chat.RoleUser, got.Messages[0].Role)
	assert.Equal(t, []string{"doc.pdf"}, got.Messages[1].Citations)
}

func TestOpen_CorruptRecordReinitializes(t *testing.T) {
	backend := createTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.SaveRecord(ctx, RecordKey, []byte("{not json")))

	s := Open(ctx, backend, nil)
	require.Len(t, s.Sessions(), 1)
	assert.NotEmpty(t, s.ActiveID())

	// The fresh state must have been persisted over the corrupt record
	reloaded := Open(ctx, backend, nil)
	assert.Equal(t, s.ActiveID(), reloaded.ActiveID())
}

func TestOpen_NullSessionValueReinitializes(t *testing.T) {
	backend := createTestBackend(t)
	ctx := context.Background()

	// Syntactically valid JSON whose session decodes to a nil pointer
	blob := []byte(`{"active_session_id":"a","sessions":{"a":null}}`)
	require.NoError(t, backend.SaveRecord(ctx, RecordKey, blob))

	s := Open(ctx, backend, nil)

	require.NotPanics(t, func() {
		sessions := s.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, chat.SentinelTitle, sessions[0].Title)
	})
	assert.NotEqual(t, "a", s.ActiveID())
	assert.NotPanics(t, func() { s.Active() })
}

func TestOpen_SessionIDMismatchReinitializes(t *testing.T) {
	backend := createTestBackend(t)
	ctx := context.Background()

	blob := []byte(`{"active_session_id":"a","sessions":{"a":{"id":"","title":"New chat"}}}`)
	require.NoError(t, backend.SaveRecord(ctx, RecordKey, blob))

	s := Open(ctx, backend, nil)
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].ID)
	assert.Equal(t, sessions[0].ID, s.ActiveID())
}

func TestOpen_DanglingActivePointerReinitializes(t *testing.T) {
	backend := createTestBackend(t)
	ctx := context.Background()

	blob := []byte(`{"active_session_id":"ghost","sessions":{"a":{"id":"a","title":"New chat"}}}`)
	require.NoError(t, backend.SaveRecord(ctx, RecordKey, blob))

	s := Open(ctx, backend, nil)
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, sessions[0].ID, s.ActiveID())
	assert.NotEqual(t, "ghost", s.ActiveID())
}

func TestOpen_LoadErrorFailsSoft(t *testing.T) {
	backend := &failingBackend{loadErr: errors.New("disk on fire")}

	s := Open(context.Background(), backend, nil)
	require.Len(t, s.Sessions(), 1)
}

func TestActivePointer_NeverDangles(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)

	ids := []string{s.ActiveID()}
	for i := 0; i < 5; i++ {
		ids = append(ids, s.CreateSession())
	}
	for _, id := range ids {
		s.SwitchActive(id)
		assert.Equal(t, id, s.ActiveID())
	}

	// Unknown ids are silent no-ops
	s.SwitchActive("nope")
	_, ok := s.Session(s.ActiveID())
	assert.True(t, ok)
	assert.Equal(t, ids[len(ids)-1], s.ActiveID())
}

func TestAppendMessage_DerivesTitleOnce(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	_, err := s.AppendMessage(id, chat.Message{Role: chat.RoleUser, Text: "  hello   world  "})
	require.NoError(t, err)

	sess, _ := s.Session(id)
	assert.Equal(t, "hello world", sess.Title)

	// Later user messages never overwrite the title
	_, err = s.AppendMessage(id, chat.Message{Role: chat.RoleUser, Text: "something else"})
	require.NoError(t, err)
	sess, _ = s.Session(id)
	assert.Equal(t, "hello world", sess.Title)
}

func TestAppendMessage_AssistantDoesNotDeriveTitle(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	_, err := s.AppendMessage(id, chat.Message{Role: chat.RoleAssistant, Text: "greetings"})
	require.NoError(t, err)

	sess, _ := s.Session(id)
	assert.Equal(t, chat.SentinelTitle, sess.Title)
}

func TestAppendMessage_UnknownSession(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)

	_, err := s.AppendMessage("nope", chat.Message{Role: chat.RoleUser, Text: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClear_ResetsTitleAndLeavesOthersUntouched(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	first := s.ActiveID()
	second := s.CreateSession()

	_, err := s.AppendMessage(first, chat.Message{Role: chat.RoleUser, Text: "alpha"})
	require.NoError(t, err)
	_, err = s.AppendMessage(second, chat.Message{Role: chat.RoleUser, Text: "beta"})
	require.NoError(t, err)

	require.NoError(t, s.Clear(first))

	cleared, _ := s.Session(first)
	assert.Empty(t, cleared.Messages)
	assert.Equal(t, chat.SentinelTitle, cleared.Title)

	other, _ := s.Session(second)
	require.Len(t, other.Messages, 1)
	assert.Equal(t, "beta", other.Title)

	// Clearing re-arms title derivation
	_, err = s.AppendMessage(first, chat.Message{Role: chat.RoleUser, Text: "gamma"})
	require.NoError(t, err)
	rearmed, _ := s.Session(first)
	assert.Equal(t, "gamma", rearmed.Title)
}

func TestAttachCitations_TargetsCapturedMessage(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	_, err := s.AppendMessage(id, chat.Message{Role: chat.RoleUser, Text: "q"})
	require.NoError(t, err)
	idx, err := s.AppendMessage(id, chat.Message{Role: chat.RoleAssistant, Text: "a"})
	require.NoError(t, err)

	// A switch between stream completion and reconciliation must not
	// redirect the attachment
	s.SwitchActive(s.CreateSession())

	require.NoError(t, s.AttachCitations(id, idx, []string{"notes.txt", "spec.pdf"}))

	sess, _ := s.Session(id)
	assert.Equal(t, []string{"notes.txt", "spec.pdf"}, sess.Messages[idx].Citations)
}

func TestAttachCitations_Errors(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	assert.ErrorIs(t, s.AttachCitations("nope", 0, nil), ErrSessionNotFound)
	assert.ErrorIs(t, s.AttachCitations(id, 3, nil), ErrMessageNotFound)
}

func TestMutations_SurviveSaveFailure(t *testing.T) {
	backend := &failingBackend{saveErr: errors.New("quota exceeded")}
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	_, err := s.AppendMessage(id, chat.Message{Role: chat.RoleUser, Text: "still works"})
	require.NoError(t, err)
	require.NoError(t, s.Clear(id))
	s.SwitchActive(s.CreateSession())

	assert.Greater(t, backend.saves, 1)
}

func TestSession_ReturnsDefensiveCopy(t *testing.T) {
	backend := createTestBackend(t)
	s := Open(context.Background(), backend, nil)
	id := s.ActiveID()

	_, err := s.AppendMessage(id, chat.Message{Role: chat.RoleUser, Text: "original"})
	require.NoError(t, err)

	sess, _ := s.Session(id)
	sess.Messages[0].Text = "mutated"

	again, _ := s.Session(id)
	assert.Equal(t, "original", again.Messages[0].Text)
}
