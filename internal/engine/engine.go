// Package engine provides quantum-locked DSP engines for driving a
// reblock.Processor: a gain stage, a partitioned FFT convolver and a
// two-rack router with mono, dual-mono and stereo input modes.
//
// Every Process method runs on the audio thread and neither allocates nor
// blocks. Buffers are processed in place.
package engine

import "errors"

// Stage processes one mono buffer in place.
type Stage interface {
	Process(buf []float32)
}

// StereoStage processes a pair of channel buffers in place.
type StereoStage interface {
	Process(left, right []float32)
}

// Preparer is implemented by stages that allocate per-quantum state.
// PrepareQuantum runs outside the audio thread.
type Preparer interface {
	PrepareQuantum(sampleRate float64, quantum int) error
}

// Finisher is implemented by stages that want a call at the end of every
// host block.
type Finisher interface {
	FinishBlock()
}

// Common errors returned by engine constructors and Prepare hooks.
var (
	// ErrInvalidQuantum indicates a non-positive quantum size.
	ErrInvalidQuantum = errors.New("invalid quantum size")

	// ErrEmptyImpulse indicates a convolver built from an empty impulse response.
	ErrEmptyImpulse = errors.New("impulse response is empty")

	// ErrInvalidMode indicates an unknown routing mode name.
	ErrInvalidMode = errors.New("invalid routing mode")
)
