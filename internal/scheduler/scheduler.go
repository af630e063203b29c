// Package scheduler runs the periodic alert evaluation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/pkg/clock"
)

// DefaultSpec evaluates alerts once a minute.
const DefaultSpec = "@every 1m"

// Ticker is one evaluation pass.
type Ticker interface {
	Tick(ctx context.Context) error
}

// AlertScheduler drives a Ticker on a cron schedule measured by an injected clock.
// Ticks never overlap: the next deadline is computed after the previous tick returns.
type AlertScheduler struct {
	ticker  Ticker
	spec    string
	loc     *time.Location
	clock   clock.Clock
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAlertScheduler constructs a scheduler. An empty spec means DefaultSpec.
func NewAlertScheduler(ticker Ticker, spec string, loc *time.Location, clk clock.Clock, logger *zap.Logger) *AlertScheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertScheduler{
		ticker:  ticker,
		spec:    spec,
		loc:     loc,
		clock:   clk,
		timeout: 50 * time.Second,
		logger:  logger,
	}
}

// Start parses the schedule and starts the evaluation loop.
func (s *AlertScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return fmt.Errorf("parse alert schedule %q: %w", s.spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, schedule, s.done)
	s.logger.Info("alert scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *AlertScheduler) loop(ctx context.Context, schedule cron.Schedule, done chan struct{}) {
	defer close(done)
	for {
		now := s.clock.Now().In(s.loc)
		timer := s.clock.NewTimer(schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
			// A tick in flight finishes even when Stop is called meanwhile.
			_ = s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single evaluation with the job timeout.
func (s *AlertScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.ticker.Tick(ctx); err != nil {
		s.logger.Warn("alert tick failed", zap.Error(err))
		return err
	}
	return nil
}

// Stop halts the loop and waits for a running tick to finish.
func (s *AlertScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.logger.Info("alert scheduler stopped")
}
