package app

import (
	"sync"
	"time"
)

// fixedSource always returns the same value.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

// sequenceSource cycles through values.
type sequenceSource struct {
	values []float64
	next   int
}

func (s *sequenceSource) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

type manualTask struct {
	fn        func()
	cancelled bool
}

// manualScheduler fires registered tasks only when Tick is called.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (m *manualScheduler) Every(_ time.Duration, fn func()) func() {
	task := &manualTask{fn: fn}
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		task.cancelled = true
		m.mu.Unlock()
	}
}

// Tick fires every live task n times.
func (m *manualScheduler) Tick(n int) {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		live := make([]*manualTask, 0, len(m.tasks))
		for _, t := range m.tasks {
			if !t.cancelled {
				live = append(live, t)
			}
		}
		m.mu.Unlock()
		for _, t := range live {
			t.fn()
		}
	}
}

// Live counts tasks that have not been cancelled.
func (m *manualScheduler) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
