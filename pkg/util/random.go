package util

import (
	"math/rand"
	"sync"
	"time"
)

// Intner is the slice of math/rand used by the simulated collaborators.
type Intner interface {
	Intn(n int) int
}

// LockedRand is a seeded source that is safe for concurrent use.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand seeds a new source. A zero seed uses the current time.
func NewLockedRand(seed int64) *LockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedRand{rng: rand.New(rand.NewSource(seed))}
}

// Intn returns a value in [0,n). n <= 0 yields 0.
func (r *LockedRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

var _ Intner = (*LockedRand)(nil)
