package presence

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/delivery-ops-api/pkg/clock"
)

// ErrFixTimeout is reported on a subscription when no fix arrived within WatchOptions.Timeout.
var ErrFixTimeout = errors.New("presence: no position fix within timeout")

// Fix is one position sample.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	At        time.Time `json:"timestamp,omitempty"`
}

// WatchOptions tune position acquisition.
type WatchOptions struct {
	HighAccuracy bool
	// MaxAge discards cached fixes older than this.
	MaxAge time.Duration
	// Timeout is the longest gap between fixes before ErrFixTimeout is reported.
	Timeout time.Duration
}

// DefaultWatchOptions mirror the device settings used in the field.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{HighAccuracy: true, MaxAge: 10 * time.Second, Timeout: 20 * time.Second}
}

// Subscription is a live stream of fixes. Close releases it and is safe to call more than once.
type Subscription interface {
	Fixes() <-chan Fix
	Errors() <-chan error
	Close() error
}

// Locator starts position subscriptions.
type Locator interface {
	Watch(ctx context.Context, opts WatchOptions) (Subscription, error)
}

// StreamLocator reads newline-delimited JSON fixes, e.g. from a device bridge on stdin.
type StreamLocator struct {
	r     io.Reader
	clock clock.Clock

	mu      sync.Mutex
	watched bool
}

// NewStreamLocator wraps r. The reader can back a single subscription.
func NewStreamLocator(r io.Reader, clk clock.Clock) *StreamLocator {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &StreamLocator{r: r, clock: clk}
}

// Watch implements Locator.
func (l *StreamLocator) Watch(ctx context.Context, opts WatchOptions) (Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched {
		return nil, errors.New("presence: stream locator already watched")
	}
	l.watched = true

	sub := &streamSubscription{
		fixes: make(chan Fix),
		errs:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	raw := make(chan rawLine)
	go scanLines(l.r, raw, sub.done)
	go sub.loop(ctx, raw, opts, l.clock)
	return sub, nil
}

type rawLine struct {
	fix Fix
	err error
	eof bool
}

func scanLines(r io.Reader, out chan<- rawLine, done <-chan struct{}) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item rawLine
		if err := json.Unmarshal([]byte(line), &item.fix); err != nil {
			item.err = fmt.Errorf("decode fix: %w", err)
		}
		select {
		case out <- item:
		case <-done:
			return
		}
	}
	item := rawLine{eof: true}
	if err := scanner.Err(); err != nil {
		item.err = fmt.Errorf("read fixes: %w", err)
	}
	select {
	case out <- item:
	case <-done:
	}
}

type streamSubscription struct {
	fixes chan Fix
	errs  chan error
	done  chan struct{}
	once  sync.Once
}

func (s *streamSubscription) Fixes() <-chan Fix    { return s.fixes }
func (s *streamSubscription) Errors() <-chan error { return s.errs }

func (s *streamSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *streamSubscription) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *streamSubscription) loop(ctx context.Context, raw <-chan rawLine, opts WatchOptions, clk clock.Clock) {
	defer close(s.fixes)

	var timeout <-chan time.Time
	var timer clock.Timer
	if opts.Timeout > 0 {
		timer = clk.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-timeout:
			s.report(ErrFixTimeout)
			timer.Reset(opts.Timeout)
		case item, ok := <-raw:
			if !ok || item.eof {
				if item.err != nil {
					s.report(item.err)
				}
				return
			}
			if item.err != nil {
				s.report(item.err)
				continue
			}
			fix := item.fix
			now := clk.Now()
			if fix.At.IsZero() {
				fix.At = now
			} else if opts.MaxAge > 0 && now.Sub(fix.At) > opts.MaxAge {
				continue
			}
			select {
			case s.fixes <- fix:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timeout:
					default:
					}
				}
				timer.Reset(opts.Timeout)
			}
		}
	}
}
