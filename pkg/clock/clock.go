// Package clock lets the alert engine, the scheduler and the presence tracker run against
// virtual time in tests.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source: current time plus timers and tickers.
type Clock = clockwork.Clock

// Timer is a clock-driven timer.
type Timer = clockwork.Timer

// NewReal returns the wall clock.
func NewReal() Clock { return clockwork.NewRealClock() }

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(waiters int)
}

// Fake is a manually advanced clock safe for concurrent use. Timers created from it fire
// when Advance moves past their deadline.
type Fake struct {
	fakeClock
}

// NewFake returns a fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{fakeClock: clockwork.NewFakeClockAt(start)}
}

// Set jumps the clock to t, firing any timer whose deadline is passed.
func (f *Fake) Set(t time.Time) {
	f.Advance(t.Sub(f.Now()))
}
