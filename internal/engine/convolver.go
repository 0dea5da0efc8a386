package engine

import (
	"fmt"

	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Convolver applies an impulse response with uniformly partitioned
// overlap-add FFT convolution. The partition size equals the quantum, so the
// convolver adds no latency of its own but only accepts quantum-sized
// buffers.
//
// Method, per quantum of B samples:
//  1. Transform the quantum zero-padded to 2B samples.
//  2. Multiply the spectra of the last P quanta with the P partition spectra
//     of the impulse response and sum them.
//  3. Inverse transform; the first B samples plus the tail saved from the
//     previous quantum are the output, the last B samples become the new tail.
type Convolver struct {
	impulse []float64

	quantum int
	fft     *fourier.FFT
	fftSize int
	scale   float64 // 1/fftSize for IFFT normalization (gonum doesn't normalize)

	// Partition spectra of the impulse response.
	partitions [][]complex128

	// Frequency-domain delay line of input spectra; history[head] is newest.
	history [][]complex128
	head    int

	// Working buffers (pre-allocated for zero allocation during processing)
	block   []float64
	acc     []complex128
	product []complex128
	result  []float64
	tail    []float64
}

// NewConvolver creates a convolver for impulse. Buffers are sized in
// PrepareQuantum.
func NewConvolver(impulse []float32) (*Convolver, error) {
	if len(impulse) == 0 {
		return nil, ErrEmptyImpulse
	}
	if len(impulse) > maxImpulseLength {
		return nil, fmt.Errorf("impulse response too long: %d samples (maximum %d)", len(impulse), maxImpulseLength)
	}

	ir := make([]float64, len(impulse))
	for i, v := range impulse {
		ir[i] = float64(v)
	}
	return &Convolver{impulse: ir}, nil
}

// PrepareQuantum transforms the impulse response for quantum-sized
// partitions and clears the convolution state.
func (c *Convolver) PrepareQuantum(_ float64, quantum int) error {
	if quantum <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantum, quantum)
	}
	if quantum == c.quantum {
		c.Reset()
		return nil
	}

	fftSize := fftSizeFactor * quantum
	bins := fftSize/fftHermitianDivisor + 1
	numPartitions := (len(c.impulse) + quantum - 1) / quantum

	fft := fourier.NewFFT(fftSize)
	padded := make([]float64, fftSize)
	partitions := make([][]complex128, numPartitions)
	for p := range partitions {
		clear(padded)
		copy(padded, c.impulse[p*quantum:min((p+1)*quantum, len(c.impulse))])
		partitions[p] = fft.Coefficients(nil, padded)
	}

	history := make([][]complex128, numPartitions)
	for p := range history {
		history[p] = make([]complex128, bins)
	}

	c.quantum = quantum
	c.fft = fft
	c.fftSize = fftSize
	c.scale = 1.0 / float64(fftSize)
	c.partitions = partitions
	c.history = history
	c.head = 0
	c.block = make([]float64, fftSize)
	c.acc = make([]complex128, bins)
	c.product = make([]complex128, bins)
	c.result = make([]float64, fftSize)
	c.tail = make([]float64, quantum)
	return nil
}

// Quantum returns the buffer length Process accepts (zero before
// PrepareQuantum).
func (c *Convolver) Quantum() int {
	return c.quantum
}

// Partitions returns how many quanta the impulse response spans.
func (c *Convolver) Partitions() int {
	return len(c.partitions)
}

// Reset clears the delay line and the overlap tail.
func (c *Convolver) Reset() {
	for _, h := range c.history {
		clear(h)
	}
	clear(c.tail)
	c.head = 0
}

// Process convolves one quantum in place. It panics if len(buf) differs
// from the prepared quantum.
func (c *Convolver) Process(buf []float32) {
	if len(buf) != c.quantum || c.quantum == 0 {
		panic(fmt.Sprintf("engine: convolver prepared for %d-sample quanta, got %d", c.quantum, len(buf)))
	}

	// The upper half of block stays zero.
	for i, v := range buf {
		c.block[i] = float64(v)
	}

	n := len(c.history)
	c.head = (c.head + n - 1) % n
	c.history[c.head] = c.fft.Coefficients(c.history[c.head], c.block)

	clear(c.acc)
	for p, h := range c.partitions {
		c128.Mul(c.product, c.history[(c.head+p)%n], h)
		for k, v := range c.product {
			c.acc[k] += v
		}
	}

	c.result = c.fft.Sequence(c.result, c.acc)
	f64.Scale(c.result, c.result, c.scale)

	for i := range buf {
		buf[i] = float32(c.result[i] + c.tail[i])
	}
	copy(c.tail, c.result[c.quantum:])
}
