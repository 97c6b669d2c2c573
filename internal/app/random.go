package app

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource yields floats in [0,1). *rand.Rand satisfies it; tests pass
// fixed sequences.
type RandomSource interface {
	Float64() float64
}

// NewRandomSource returns a time-seeded source safe for use from several
// sessions at once.
func NewRandomSource() RandomSource {
	return &lockedSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// randInt draws an integer uniformly from [lo, hi].
func randInt(src RandomSource, lo, hi int) int {
	n := lo + int(src.Float64()*float64(hi-lo+1))
	if n > hi {
		return hi
	}
	return n
}
