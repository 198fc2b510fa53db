package rollsync

import (
	"sync"
	"time"
)

// TimeSource supplies the current time to the sink. The freshness deadlines
// and the background flush check both read it, so substituting a manual
// source makes the timeout behavior fully deterministic under test.
type TimeSource interface {
	Now() time.Time
}

// SystemTimeSource reads the system wall clock.
type SystemTimeSource struct{}

func (SystemTimeSource) Now() time.Time { return time.Now() }

// ManualTimeSource returns whatever time was last set. Useful to control the
// current time during unit testing.
type ManualTimeSource struct {
	mu  sync.Mutex
	now time.Time
}

func (m *ManualTimeSource) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set sets the time returned by subsequent Now calls.
func (m *ManualTimeSource) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the current time forward by d.
func (m *ManualTimeSource) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
