// Package clock supplies the pipeline's notion of time. Action timestamps
// and batch-window computation both go through the Clock port, so tests can
// pin the moment a submission arrives.
package clock

import (
	"sync"
	"time"
)

// Real reads the wall clock.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a settable clock. Routing tests use it to make batch slots and
// report timestamps deterministic.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}
