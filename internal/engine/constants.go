package engine

// FFT convolution constants.
const (
	// fftSizeFactor sizes the transform at twice the quantum so one quantum
	// convolved with one partition fits without circular wrap.
	fftSizeFactor = 2

	// fftHermitianDivisor is used to calculate unique frequency bins in real FFT.
	// Due to Hermitian symmetry, a real FFT of size N has N/2 + 1 unique complex coefficients.
	fftHermitianDivisor = 2

	// maxImpulseLength bounds the impulse response (ten seconds at 192 kHz).
	maxImpulseLength = 10 * 192000
)

// dbPerDecade converts between amplitude ratios and decibels.
const dbPerDecade = 20.0
