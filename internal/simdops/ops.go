// Package simdops exposes the SIMD kernels the block processor and its demo
// engines run on the audio thread. Everything here operates on float32 planar
// channel slices, the sample format hosts hand to the processor.
package simdops

import (
	"github.com/tphakala/simd/cpu"
	"github.com/tphakala/simd/f32"
)

// Ops bundles the kernels used by the metering and gain paths.
// The function pointers let tests swap in scalar reference versions.
type Ops struct {
	// DotProductUnsafe computes the dot product without bounds checking.
	// Both slices must have equal length.
	DotProductUnsafe func(a, b []float32) float32

	// Scale multiplies each element by s: dst[i] = a[i] * s.
	Scale func(dst, a []float32, s float32)

	// Interleave2 interleaves two channels: dst[0]=a[0], dst[1]=b[0], ...
	Interleave2 func(dst, a, b []float32)

	// Sum returns the sum of all elements.
	Sum func(a []float32) float32
}

var ops32 = Ops{
	DotProductUnsafe: f32.DotProductUnsafe,
	Scale:            f32.Scale,
	Interleave2:      f32.Interleave2,
	Sum:              f32.Sum,
}

// Float32Ops returns the float32 SIMD operations.
func Float32Ops() *Ops {
	return &ops32
}

// SumSquares returns the sum of x[i]*x[i], accumulated in float64 when the
// block is long enough for float32 accumulation error to matter.
func SumSquares(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	if len(x) <= precisionSplit {
		return float64(ops32.DotProductUnsafe(x, x))
	}

	var sum float64
	for start := 0; start < len(x); start += precisionSplit {
		end := min(start+precisionSplit, len(x))
		chunk := x[start:end]
		sum += float64(ops32.DotProductUnsafe(chunk, chunk))
	}
	return sum
}

// Info describes the SIMD capabilities detected on this CPU.
func Info() string {
	return cpu.Info()
}

// precisionSplit bounds how many squares are summed in float32 before being
// folded into the float64 total.
const precisionSplit = 1024
