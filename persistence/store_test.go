package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "session-1", []byte("opaque-bytes")))

	data, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, []byte("opaque-bytes"), data)
}

func TestSaveOverwritesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "session-1", []byte("first")))
	require.NoError(t, s.Save(ctx, "session-1", []byte("second")))

	data, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "session-1", []byte("data")))
	require.NoError(t, s.Delete(ctx, "session-1"))

	_, err := s.Load(ctx, "session-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestListReturnsSavedSessionIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", []byte("1")))
	require.NoError(t, s.Save(ctx, "b", []byte("2")))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSaveRejectsEmptySessionID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), "", []byte("data"))
	require.Error(t, err)
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	s := newTestStore(t)
	_, err := NewSQLStore(s.db, "oracle")
	require.Error(t, err)
}

func TestNewSQLStoreNormalizesSqlite3Dialect(t *testing.T) {
	s := newTestStore(t)
	normalized, err := NewSQLStore(s.db, "sqlite3")
	require.NoError(t, err)
	require.Equal(t, "sqlite", normalized.dialect)
}
