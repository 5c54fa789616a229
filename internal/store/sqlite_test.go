// ABOUTME: Tests for the SQLite record backend.
// ABOUTME: Covers absent keys, overwrite semantics, and directory creation.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackend_AbsentKeyIsNilNil(t *testing.T) {
	b := createTestBackend(t)

	blob, err := b.LoadRecord(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestSQLiteBackend_SaveOverwrites(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveRecord(ctx, "k", []byte("one")))
	require.NoError(t, b.SaveRecord(ctx, "k", []byte("two")))

	blob, err := b.LoadRecord(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), blob)
}

func TestSQLiteBackend_KeysAreIndependent(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveRecord(ctx, "granite.sessions.v1", []byte("new")))
	require.NoError(t, b.SaveRecord(ctx, "granite.sessions.v0", []byte("old")))

	blob, err := b.LoadRecord(ctx, "granite.sessions.v1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), blob)
}

func TestNewSQLiteBackend_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SaveRecord(context.Background(), "k", []byte("v")))
}
