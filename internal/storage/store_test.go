package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAllowedUsers(t *testing.T) {
	store := newTestStore(t)

	allowed, err := store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.AddAllowedUser(42, 1))
	require.NoError(t, store.AddAllowedUser(43, 1))

	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.True(t, allowed)

	users, err := store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(42), users[0].TelegramID)
	assert.Equal(t, int64(1), users[0].AddedBy)
	assert.False(t, users[0].AddedAt.IsZero())

	require.NoError(t, store.RemoveAllowedUser(42))
	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	users, err = store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(43), users[0].TelegramID)
}

func TestAddAllowedUser_Idempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddAllowedUser(7, 1))
	require.NoError(t, store.AddAllowedUser(7, 2))

	users, err := store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(2), users[0].AddedBy)
}

func TestRemoveAllowedUser_Missing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.RemoveAllowedUser(999))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.AddAllowedUser(5, 1))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	allowed, err := store.IsUserAllowed(5)
	require.NoError(t, err)
	assert.True(t, allowed)
}
