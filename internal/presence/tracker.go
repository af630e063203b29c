// Package presence reports a device's live position and keeps fixes that could not be
// delivered in a durable queue until the store is reachable again.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

// State is the tracker lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateWatching      State = "watching"
	StateReporting     State = "reporting"
	StateQueuing       State = "queuing"
	StateStopped       State = "stopped"
)

var (
	ErrAlreadyWatching = errors.New("presence: tracker is already watching")
	ErrStopped         = errors.New("presence: tracker is stopped")
)

// Store receives location pings.
type Store interface {
	Upsert(ctx context.Context, ping models.LocationPing) error
}

// PendingQueue is the durable offline queue.
type PendingQueue interface {
	Append(ping models.LocationPing, capturedAt time.Time) (models.PendingLocationEntry, error)
	List() ([]models.PendingLocationEntry, error)
	Delete(key string) error
}

// FlushResult summarises one drain of the pending queue.
type FlushResult struct {
	Flushed   int
	Dropped   int
	Remaining int
}

// Tracker drives one user's location reporting.
type Tracker struct {
	store     Store
	queue     PendingQueue
	registrar SyncRegistrar
	clock     clock.Clock
	options   WatchOptions
	logger    *zap.Logger

	mu       sync.Mutex
	state    State
	identity models.Identity
	cancel   context.CancelFunc
	done     chan struct{}

	flushMu sync.Mutex
}

// NewTracker constructs a Tracker. registrar may be nil when background sync is unavailable.
func NewTracker(store Store, queue PendingQueue, registrar SyncRegistrar, clk clock.Clock, opts WatchOptions, logger *zap.Logger) *Tracker {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:     store,
		queue:     queue,
		registrar: registrar,
		clock:     clk,
		options:   opts,
		logger:    logger,
		state:     StateUninitialized,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	if t.state != StateStopped && t.state != StateUninitialized {
		t.state = s
	}
	t.mu.Unlock()
}

// Done is closed when the current subscription ends, either because the locator stream
// closed or because StopWatching was called. It is closed already when nothing is watched.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

// StartWatching subscribes to the locator and reports every fix for identity.
func (t *Tracker) StartWatching(ctx context.Context, identity models.Identity, locator Locator) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateStopped:
		return ErrStopped
	case StateUninitialized:
	default:
		return ErrAlreadyWatching
	}

	watchCtx, cancel := context.WithCancel(ctx)
	sub, err := locator.Watch(watchCtx, t.options)
	if err != nil {
		cancel()
		return fmt.Errorf("start position watch: %w", err)
	}

	t.identity = identity
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = StateWatching
	go t.run(watchCtx, sub, identity, t.done)
	t.logger.Info("presence watch started", zap.String("email", identity.Email), zap.Bool("high_accuracy", t.options.HighAccuracy))
	return nil
}

func (t *Tracker) run(ctx context.Context, sub Subscription, identity models.Identity, done chan struct{}) {
	var reports sync.WaitGroup
	defer t.release(done)
	defer reports.Wait()
	defer sub.Close()

	fixes, errs := sub.Fixes(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.logger.Warn("position error", zap.Error(err))
		case fix, ok := <-fixes:
			if !ok {
				t.logger.Info("position stream ended")
				return
			}
			reports.Add(1)
			go func(f Fix) {
				defer reports.Done()
				if err := t.report(ctx, identity, f.Latitude, f.Longitude, f.At); err != nil {
					t.logger.Error("location report lost", zap.Error(err))
				}
			}(fix)
		}
	}
}

// release returns a tracker whose subscription ended on its own to StateUninitialized so
// StartWatching can subscribe again. A stopped tracker stays stopped.
func (t *Tracker) release(done chan struct{}) {
	t.mu.Lock()
	if t.done == done {
		if t.cancel != nil {
			t.cancel()
		}
		t.cancel, t.done = nil, nil
		if t.state != StateStopped {
			t.state = StateUninitialized
		}
	}
	t.mu.Unlock()
	close(done)
}

// Report sends one position. Store failures queue the ping and never surface to the caller;
// only a failure of the local queue itself is returned.
func (t *Tracker) Report(ctx context.Context, identity models.Identity, lat, lon float64) error {
	return t.report(ctx, identity, lat, lon, time.Time{})
}

func (t *Tracker) report(ctx context.Context, identity models.Identity, lat, lon float64, at time.Time) error {
	if at.IsZero() {
		at = t.clock.Now()
	}
	ping := models.LocationPing{
		UserEmail:  models.NormalizeEmail(identity.Email),
		UserName:   identity.Name,
		Latitude:   lat,
		Longitude:  lon,
		IsOnline:   true,
		LastUpdate: at.UTC(),
	}

	t.setState(StateReporting)
	err := t.store.Upsert(ctx, ping)
	if err == nil {
		t.setState(StateWatching)
		if _, flushErr := t.FlushPending(ctx); flushErr != nil {
			t.logger.Debug("opportunistic flush stopped", zap.Error(flushErr))
		}
		return nil
	}

	t.setState(StateQueuing)
	defer t.setState(StateWatching)
	entry, qerr := t.queue.Append(ping, at)
	if qerr != nil {
		return fmt.Errorf("queue location after %v: %w", err, qerr)
	}
	t.logger.Info("location queued", zap.String("key", entry.Key), zap.Error(err))
	if t.registrar != nil {
		if rerr := t.registrar.RegisterSync(ctx); rerr != nil {
			t.logger.Debug("background sync not registered", zap.Error(rerr))
		}
	}
	return nil
}

// FlushPending sends queued pings oldest first. An entry is deleted only after the store
// accepted it; the drain stops at the first store failure. Pings the store rejects as
// invalid are dropped since resending cannot succeed.
func (t *Tracker) FlushPending(ctx context.Context) (FlushResult, error) {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	var result FlushResult
	entries, err := t.queue.List()
	if err != nil {
		return result, err
	}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			result.Remaining = len(entries) - i
			return result, err
		}
		if err := t.store.Upsert(ctx, entry.Ping); err != nil {
			if appErrors.IsCode(err, appErrors.ErrValidation) {
				t.logger.Warn("dropping rejected location", zap.String("key", entry.Key), zap.Error(err))
				if derr := t.queue.Delete(entry.Key); derr != nil {
					result.Remaining = len(entries) - i
					return result, derr
				}
				result.Dropped++
				continue
			}
			result.Remaining = len(entries) - i
			return result, err
		}
		if err := t.queue.Delete(entry.Key); err != nil {
			result.Remaining = len(entries) - i
			return result, err
		}
		result.Flushed++
	}
	if result.Flushed > 0 {
		t.logger.Info("pending locations flushed", zap.Int("count", result.Flushed))
	}
	return result, nil
}

// StopWatching cancels acquisition and waits for in-flight reports. The last ping stays on the
// server; staleness is decided by readers.
func (t *Tracker) StopWatching() {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	cancel, done, email := t.cancel, t.done, t.identity.Email
	t.state = StateStopped
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	t.logger.Info("presence watch stopped", zap.String("email", email))
}
