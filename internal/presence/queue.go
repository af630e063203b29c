package presence

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/storage"
)

const pendingStore = "pending_locations"

// FileQueue keeps pings captured while offline in a LocalStore. Keys are zero-padded capture
// timestamps so lexical order is capture order.
type FileQueue struct {
	store  *storage.LocalStore
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileQueue constructs a FileQueue.
func NewFileQueue(store *storage.LocalStore, logger *zap.Logger) *FileQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileQueue{store: store, logger: logger}
}

func pendingKey(at time.Time) string {
	return fmt.Sprintf("%020d", at.UnixNano())
}

// Append stores the ping under its capture time.
func (q *FileQueue) Append(ping models.LocationPing, capturedAt time.Time) (models.PendingLocationEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	at := capturedAt.UTC()
	key := pendingKey(at)
	for {
		_, err := q.store.Get(pendingStore, key)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return models.PendingLocationEntry{}, fmt.Errorf("check pending key: %w", err)
		}
		// Same nanosecond: nudge forward to keep keys unique and ordered.
		at = at.Add(time.Nanosecond)
		key = pendingKey(at)
	}

	entry := models.PendingLocationEntry{Key: key, Ping: ping, CapturedAt: capturedAt.UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return models.PendingLocationEntry{}, fmt.Errorf("encode pending entry: %w", err)
	}
	if err := q.store.Put(pendingStore, key, data); err != nil {
		return models.PendingLocationEntry{}, fmt.Errorf("store pending entry: %w", err)
	}
	return entry, nil
}

// List returns the queued entries oldest first. Unreadable entries are discarded.
func (q *FileQueue) List() ([]models.PendingLocationEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.ListAll(pendingStore)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	entries := make([]models.PendingLocationEntry, 0, len(items))
	for _, item := range items {
		var entry models.PendingLocationEntry
		if err := json.Unmarshal(item.Value, &entry); err != nil {
			q.logger.Warn("discarding corrupt pending entry", zap.String("key", item.Key), zap.Error(err))
			_ = q.store.Delete(pendingStore, item.Key)
			continue
		}
		entry.Key = item.Key
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes an entry. Missing keys are ignored.
func (q *FileQueue) Delete(key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Delete(pendingStore, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete pending entry: %w", err)
	}
	return nil
}

// Len reports the number of queued entries.
func (q *FileQueue) Len() (int, error) {
	entries, err := q.List()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
