package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(BadgerConfig{
		DBPath:   t.TempDir(),
		Password: "test-password",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStoreRequiresPassword(t *testing.T) {
	_, err := NewBadgerStore(BadgerConfig{DBPath: t.TempDir()})
	assert.ErrorIs(t, err, ErrEncryptionKeyNotProvided)
}

func TestBadgerStorePutGet(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("blob/abc", []byte("ciphertext")))

	got, err := store.Get("blob/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), got)

	_, err = store.Get("blob/missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerStoreHasAndDelete(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.Has("blob/abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put("blob/abc", []byte("v")))
	ok, err = store.Has("blob/abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete("blob/abc"))
	ok, err = store.Has("blob/abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
