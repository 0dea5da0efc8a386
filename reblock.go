package reblock

import (
	"errors"
	"fmt"
	"log"

	"github.com/tphakala/go-audio-reblock/internal/meter"
	"github.com/tphakala/go-audio-reblock/internal/quantum"
)

// QuantumProcessor is the DSP engine driven by a Processor.
//
// ProcessQuantum processes len(left) samples of both channels in place.
// Both slices always have the same length, equal to the quantum chosen in
// Prepare, and are contiguous. Implementations must be real-time safe: no
// allocation, no locking, no blocking. The Processor assumes the call never
// panics and does not try to recover if it does.
type QuantumProcessor interface {
	ProcessQuantum(left, right []float32)
}

// QuantumFunc adapts an ordinary function to QuantumProcessor.
type QuantumFunc func(left, right []float32)

// ProcessQuantum calls f(left, right).
func (f QuantumFunc) ProcessQuantum(left, right []float32) {
	f(left, right)
}

// Preparer is implemented by engines that need the quantum and sample rate
// before processing starts. PrepareQuantum is called from Processor.Prepare,
// outside the audio thread.
type Preparer interface {
	PrepareQuantum(sampleRate float64, quantum int) error
}

// BlockFinisher is implemented by engines that want a notification once
// every host block has been fully processed, e.g. to publish state for a
// UI. FinishBlock runs on the audio thread.
type BlockFinisher interface {
	FinishBlock()
}

// Config holds processor options. The zero value is usable.
type Config struct {
	// MaxDelay caps the compensating delay the processor may grow to when
	// the host delivers more samples than have been processed. Zero selects
	// the ring headroom (capacity minus host block size), which is never
	// reached by hosts that respect the prepared block size.
	MaxDelay int

	// Strict makes invariant violations panic instead of being clamped.
	// Use it in tests and debug builds.
	Strict bool

	// Logger receives lifecycle events from Prepare and Release. Nothing is
	// logged from ProcessBlock. Nil disables logging.
	Logger *log.Logger
}

// Common errors returned by the processor.
var (
	// ErrConfiguration indicates an invalid block size, sample rate or
	// option. It is returned from New and Prepare.
	ErrConfiguration = errors.New("invalid processor configuration")

	// ErrInvariantViolation indicates ring overflow or an output underflow
	// after the latency top-up. It only surfaces as a panic value in
	// Strict mode.
	ErrInvariantViolation = errors.New("re-blocking invariant violated")
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxDelay < 0 {
		return fmt.Errorf("%w: max delay must not be negative (got %d)", ErrConfiguration, c.MaxDelay)
	}
	return nil
}

// MeterChannel indexes the level meters; see Processor.Levels.
type MeterChannel = meter.Channel

// Meter positions.
const (
	PreLeft   = meter.PreLeft
	PreRight  = meter.PreRight
	PostLeft  = meter.PostLeft
	PostRight = meter.PostRight
)

// Levels is a snapshot of the four meters in dB, indexed by MeterChannel.
type Levels = meter.Levels

// Plan is the quantum layout chosen for a host block size.
type Plan = quantum.Plan

// PlanFor returns the quantum plan Prepare would choose for hostBlockSize.
func PlanFor(hostBlockSize int) (Plan, error) {
	plan, err := quantum.Size(hostBlockSize)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return plan, nil
}
