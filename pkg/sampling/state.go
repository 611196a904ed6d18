// Package sampling implements the random draws behind the random crop
// transforms: uniform patch placement, foreground/background and per-class
// center selection from precomputed index pools, and importance sampling
// from a scalar weight map.
//
// Every draw consumes a caller-owned random source, so two samplers seeded
// identically and called in the same order produce identical geometry. A
// source must not be shared across goroutines without synchronization;
// parallel workers should derive independent seeds with SubSeed.
package sampling

import (
	"time"

	"golang.org/x/exp/rand"
)

// State owns the pseudo-random source behind a random transform. Transforms
// embed it by value; the zero value seeds itself from the clock on first
// use, so reproducible runs call Seed or SetSource first.
type State struct {
	rng *rand.Rand
}

// NewState creates a state seeded for reproducible draws.
func NewState(seed uint64) *State {
	return &State{rng: rand.New(rand.NewSource(seed))}
}

// Seed re-seeds the state, resetting its draw sequence.
func (s *State) Seed(seed uint64) {
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(seed))
		return
	}
	s.rng.Seed(seed)
}

// SetSource replaces the underlying generator, for sharing one source
// across several transforms.
func (s *State) SetSource(r *rand.Rand) {
	s.rng = r
}

// Rand returns the underlying generator, seeding it from the clock if the
// state was never seeded.
func (s *State) Rand() *rand.Rand {
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return s.rng
}

// SubSeed draws a 32-bit seed for an independent child state. Multi-sample
// transforms use one sub-seed per batch so that samples are reproducible
// without sharing the parent source.
func (s *State) SubSeed() uint64 {
	return uint64(s.Rand().Uint32())
}

// RandInt draws a uniform integer from [lo, hi). A degenerate interval
// returns lo without consuming randomness.
func RandInt(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo)
}

// RandomPatchStart draws the low corner of a patch uniformly per axis so
// the patch stays inside the image, in ascending axis order. Axes the patch
// covers completely are pinned to zero without consuming randomness.
func RandomPatchStart(r *rand.Rand, spatial, patch []int) []int {
	start := make([]int, len(spatial))
	for i, dim := range spatial {
		size := patch[i]
		if size > dim {
			size = dim
		}
		if dim > size {
			start[i] = r.Intn(dim - size + 1)
		}
	}
	return start
}
