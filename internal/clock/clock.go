package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts wall-clock time so window and cooldown logic can be tested
type Clock interface {
	Now() time.Time
}

// DefaultClock implements the Clock interface using the system clock
type DefaultClock struct{}

// Now returns the current time
func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually driven clock for tests
type Fake struct {
	source interface {
		Now() time.Time
		Advance(time.Duration)
	}
}

func NewFake(now time.Time) *Fake {
	return &Fake{source: clockwork.NewFakeClockAt(now)}
}

func (f *Fake) Now() time.Time {
	return f.source.Now()
}

// Set jumps to an absolute instant, forwards or backwards
func (f *Fake) Set(now time.Time) {
	f.source.Advance(now.Sub(f.source.Now()))
}

func (f *Fake) Advance(d time.Duration) {
	f.source.Advance(d)
}
