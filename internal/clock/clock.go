package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant to lifecycle and bidding logic.
// Injecting it keeps every time-dependent decision deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Real reads the wall clock.
type Real struct{}

func NewReal() *Real {
	return &Real{}
}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake clock to an absolute instant.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
