// Package quantum computes the fixed processing block size (the quantum)
// and the compensating delay for a host-announced audio block size.
//
// Power-of-two block sizes divide into the quantum exactly, so no silence
// has to be injected. Other sizes drift against the quantum by up to one
// quantum per callback and are pre-buffered with quantum-1 samples of
// silence before the first processed output.
package quantum

import (
	"errors"
	"fmt"
)

// ErrInvalidBlockSize is returned for zero or negative host block sizes.
var ErrInvalidBlockSize = errors.New("invalid host block size")

// Plan is the re-blocking layout derived from a host block size.
type Plan struct {
	// HostBlockSize is the block size the plan was computed for.
	HostBlockSize int

	// Quantum is the fixed number of samples per engine call.
	Quantum int

	// Delay is the initial compensating silence, in samples.
	Delay int

	// Capacity is the per-channel ring length. It is a multiple of
	// Quantum and at least HostBlockSize + Quantum.
	Capacity int
}

// Size computes the quantum plan for hostBlockSize.
func Size(hostBlockSize int) (Plan, error) {
	if hostBlockSize <= 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidBlockSize, hostBlockSize)
	}

	var q, delay int
	if IsPowerOfTwo(hostBlockSize) {
		q = powerOfTwoQuantum(hostBlockSize)
	} else {
		q = nearestLowerQuantum(hostBlockSize)
		delay = q - 1
	}

	return Plan{
		HostBlockSize: hostBlockSize,
		Quantum:       q,
		Delay:         delay,
		Capacity:      Capacity(hostBlockSize, q),
	}, nil
}

// Capacity returns the ring length for a host block size and quantum:
// the block rounded up to whole quanta, plus one spare quantum.
func Capacity(hostBlockSize, q int) int {
	return ((hostBlockSize+q-1)/q + spareQuanta) * q
}

// Latency returns the structural latency of the plan in samples.
func (p Plan) Latency() int {
	return p.Delay
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return fmt.Sprintf("block=%d quantum=%d delay=%d capacity=%d",
		p.HostBlockSize, p.Quantum, p.Delay, p.Capacity)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// powerOfTwoQuantum subdivides large power-of-two blocks so the engine is
// called more often with smaller chunks.
func powerOfTwoQuantum(n int) int {
	switch {
	case n >= quarterThreshold:
		return n / quarterDivisor
	case n >= halveThreshold:
		return n / halveDivisor
	default:
		return n
	}
}

// nearestLowerQuantum picks the largest power of two below n that is still
// at least n/2, never going under 2^minQuantumOrder. Blocks shorter than the
// minimum get the minimum.
func nearestLowerQuantum(n int) int {
	k := minQuantumOrder
	for ; 1<<k < n; k++ {
		if n-(1<<k) <= 1<<k {
			break
		}
	}
	return 1 << k
}
