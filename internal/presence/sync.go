package presence

import (
	"context"
	"fmt"

	"github.com/noah-isme/delivery-ops-api/pkg/jobs"
)

// SyncJobID coalesces background flush requests into a single queued job.
const SyncJobID = "location-sync"

// SyncRegistrar requests a background flush of the pending queue.
type SyncRegistrar interface {
	RegisterSync(ctx context.Context) error
}

// Flusher drains the pending queue.
type Flusher interface {
	FlushPending(ctx context.Context) (FlushResult, error)
}

// NewSyncHandler returns a job handler that fails while entries remain, so the queue retries with backoff.
func NewSyncHandler(flusher Flusher) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		result, err := flusher.FlushPending(ctx)
		if err != nil {
			return fmt.Errorf("flush pending locations: %w", err)
		}
		if result.Remaining > 0 {
			return fmt.Errorf("%d pending locations remain", result.Remaining)
		}
		return nil
	}
}

// JobSyncRegistrar schedules flushes on a jobs.Queue.
type JobSyncRegistrar struct {
	queue *jobs.Queue
}

// NewJobSyncRegistrar constructs a registrar over a started queue.
func NewJobSyncRegistrar(queue *jobs.Queue) *JobSyncRegistrar {
	return &JobSyncRegistrar{queue: queue}
}

// RegisterSync implements SyncRegistrar. Requests made while a flush is pending are coalesced.
func (r *JobSyncRegistrar) RegisterSync(ctx context.Context) error {
	if r == nil || r.queue == nil {
		return nil
	}
	return r.queue.TryEnqueue(jobs.Job{ID: SyncJobID, Type: "presence.flush"})
}
