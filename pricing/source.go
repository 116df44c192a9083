package pricing

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniform draws in [0, 1). *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a PCG-backed source. A zero seed picks one from the
// clock.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sequence replays a fixed list of draws, wrapping around at the end. It is
// meant for tests that need to steer the walk or the exit rules.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
	calls  int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	s.calls++
	return v
}

// Calls reports how many draws have been taken.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
