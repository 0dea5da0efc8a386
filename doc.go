// Package reblock re-quantizes real-time audio for DSP engines that need
// fixed-size processing blocks.
//
// Plugin hosts deliver audio in blocks of whatever size they like, and the
// size may change from one callback to the next. Engines built on
// convolution or block-based spectral processing need every call to carry
// exactly the same number of samples. A [Processor] sits between the two:
// it absorbs each host block into a per-channel ring buffer, runs the engine
// on whole quanta, and hands back exactly as many samples as the host asked
// for, padding with silence while the pipeline fills.
//
// # Quick Start
//
//	p, err := reblock.New(reblock.QuantumFunc(func(left, right []float32) {
//	    // process len(left) samples in place
//	}), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Non-real-time setup, called whenever the host block size changes.
//	if err := p.Prepare(48000, 480); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Audio callback.
//	p.ProcessBlock(inLeft, inRight, outLeft, outRight)
//
// # Quantum Sizing
//
// Power-of-two host blocks below 512 samples are processed as a single
// quantum; blocks in [512, 1024) as two quanta and larger blocks as four.
// They add no latency. Any other block size uses the largest power of two
// that is at least half the block (minimum 64) and adds quantum-1 samples of
// latency. See [Processor.LatencySamples].
//
// # Real-Time Safety
//
// [Processor.ProcessBlock] does not allocate, lock or block. Ring storage is
// allocated in [Processor.Prepare], which hosts call outside the audio
// thread and never concurrently with ProcessBlock. [Processor.Stats] and
// [Processor.Levels] read atomically published values and may be called
// from any goroutine, typically a UI refresh timer.
//
// # Invariant Violations
//
// Ring overflow, and running out of processed samples after the latency
// top-up, indicate a bug in the block arithmetic rather than a runtime
// condition. With [Config.Strict] set the processor panics with an error
// wrapping [ErrInvariantViolation]. Otherwise it clamps (drops or
// zero-fills the offending span), counts the event in [Stats], and keeps
// the audio thread running.
package reblock
