package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/storage"
)

func TestFileQueueOrdersByCaptureTime(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	queue := NewFileQueue(store, nil)

	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	_, err = queue.Append(models.LocationPing{Latitude: 2}, base.Add(time.Second))
	require.NoError(t, err)
	first, err := queue.Append(models.LocationPing{Latitude: 1}, base)
	require.NoError(t, err)
	twin, err := queue.Append(models.LocationPing{Latitude: 1.5}, base)
	require.NoError(t, err)
	assert.Greater(t, twin.Key, first.Key, "same-instant captures get distinct increasing keys")

	reopened, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	entries, err := NewFileQueue(reopened, nil).List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []float64{1, 1.5, 2}, []float64{entries[0].Ping.Latitude, entries[1].Ping.Latitude, entries[2].Ping.Latitude})
	assert.True(t, base.Equal(entries[1].CapturedAt))

	require.NoError(t, queue.Delete(first.Key))
	require.NoError(t, queue.Delete(first.Key))
	n, err := queue.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileQueueDiscardsCorruptEntries(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	queue := NewFileQueue(store, nil)
	require.NoError(t, store.Put(pendingStore, "00000000000000000001", []byte("{broken")))
	_, err = queue.Append(models.LocationPing{Latitude: 7}, time.Now())
	require.NoError(t, err)

	entries, err := queue.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 7.0, entries[0].Ping.Latitude)
	_, err = store.Get(pendingStore, "00000000000000000001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
