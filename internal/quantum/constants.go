package quantum

// Power-of-two subdivision thresholds.
const (
	halveThreshold   = 512  // Blocks in [512, 1024) run as two quanta
	quarterThreshold = 1024 // Blocks >= 1024 run as four quanta

	halveDivisor   = 2
	quarterDivisor = 4
)

// minQuantumOrder is the smallest quantum order tried for
// non-power-of-two block sizes (2^6 = 64 samples).
const minQuantumOrder = 6

// spareQuanta is the number of whole quanta of slack the ring keeps
// beyond the host block rounded up to a quantum multiple.
const spareQuanta = 1
