// Package host simulates an audio host that calls a block processor with
// varying callback sizes.
package host

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrInvalidJitter indicates callback size bounds that cannot be drawn from.
var ErrInvalidJitter = errors.New("invalid jitter range")

// Jitter draws callback sizes uniformly from [Min, Max]. A fixed size is the
// special case Min == Max. The sequence is reproducible for a given seed.
type Jitter struct {
	Min, Max int
	rng      *rand.Rand
}

// Fixed returns a policy that always yields n.
func Fixed(n int) (*Jitter, error) {
	return Uniform(n, n, 0)
}

// Uniform returns a policy drawing sizes in [lo, hi] from a PCG seeded with
// seed.
func Uniform(lo, hi int, seed uint64) (*Jitter, error) {
	if lo < 1 || hi < lo {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidJitter, lo, hi)
	}
	return &Jitter{
		Min: lo,
		Max: hi,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Next returns the next callback size.
func (j *Jitter) Next() int {
	if j.Min == j.Max {
		return j.Min
	}
	return j.Min + j.rng.IntN(j.Max-j.Min+1)
}

func (j *Jitter) String() string {
	if j.Min == j.Max {
		return fmt.Sprintf("fixed %d", j.Min)
	}
	return fmt.Sprintf("uniform %d..%d", j.Min, j.Max)
}
