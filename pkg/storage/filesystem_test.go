package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTripSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("pending", "00000000000000000002", []byte(`{"n":2}`)))
	require.NoError(t, store.Put("pending", "00000000000000000001", []byte(`{"n":1}`)))
	require.NoError(t, store.Put("pending", "user/with:odd key", []byte(`{"n":3}`)))

	reopened, err := NewLocalStore(dir)
	require.NoError(t, err)

	items, err := reopened.ListAll("pending")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "00000000000000000001", items[0].Key)
	assert.Equal(t, "00000000000000000002", items[1].Key)
	assert.Equal(t, "user/with:odd key", items[2].Key)

	value, err := reopened.Get("pending", "user/with:odd key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(value))
}

func TestLocalStoreDeleteAndMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("pending", "k", []byte("v")))
	require.NoError(t, store.Delete("pending", "k"))
	require.NoError(t, store.Delete("pending", "k"))

	_, err = store.Get("pending", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := store.ListAll("never-written")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put("../escape", "k", []byte("v")))
	assert.Error(t, store.Put("pending", "..", []byte("v")))
	assert.Error(t, store.Put("pending", "", []byte("v")))
}
