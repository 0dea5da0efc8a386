package reblock

import (
	"fmt"

	"github.com/tphakala/go-audio-reblock/internal/meter"
	"github.com/tphakala/go-audio-reblock/internal/ring"
)

// Processor re-blocks a stereo stream for a fixed-quantum engine.
//
// Lifecycle: New, then Prepare before the first audio callback and whenever
// the host block size or sample rate changes, ProcessBlock on the audio
// thread, and Release when playback stops. Prepare and Release must not run
// concurrently with ProcessBlock.
type Processor struct {
	cfg      Config
	engine   QuantumProcessor
	finisher BlockFinisher

	plan       Plan
	sampleRate float64
	prepared   bool

	rings [numChannels]ring.Buffer

	delay      int // silence still owed to the output
	totalDelay int // silence emitted since Prepare
	maxDelay   int

	meters *meter.Bank

	counters counters
	stats    publishedStats
}

// New creates a processor driving engine. A nil cfg uses defaults.
func New(engine QuantumProcessor, cfg *Config) (*Processor, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine must not be nil", ErrConfiguration)
	}

	p := &Processor{engine: engine}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		p.cfg = *cfg
	}
	p.finisher, _ = engine.(BlockFinisher)
	p.meters = meter.NewBank(0)

	return p, nil
}

// Prepare computes the quantum plan for hostBlockSize and (re)allocates the
// ring buffers. Cursors, delays and statistics are reset on every call, so
// calling it twice with the same arguments leaves the processor in the same
// state. Storage is reused when the ring capacity does not change.
func (p *Processor) Prepare(sampleRate float64, hostBlockSize int) error {
	if sampleRate < minSampleRate || sampleRate > maxSampleRate {
		return fmt.Errorf("%w: sample rate %g out of range (%g to %g)",
			ErrConfiguration, sampleRate, minSampleRate, maxSampleRate)
	}

	plan, err := PlanFor(hostBlockSize)
	if err != nil {
		return err
	}

	maxDelay := p.cfg.MaxDelay
	if maxDelay == 0 {
		maxDelay = plan.Capacity - plan.HostBlockSize
	}
	if maxDelay < plan.Delay {
		return fmt.Errorf("%w: max delay %d below structural delay %d for block size %d",
			ErrConfiguration, maxDelay, plan.Delay, hostBlockSize)
	}

	if prep, ok := p.engine.(Preparer); ok {
		if err := prep.PrepareQuantum(sampleRate, plan.Quantum); err != nil {
			// The engine may be partly reconfigured; it must not see
			// quanta from the old plan.
			p.Release()
			return fmt.Errorf("%w: failed to prepare engine for quantum %d: %w",
				ErrConfiguration, plan.Quantum, err)
		}
	}

	for ch := range p.rings {
		p.rings[ch].Reset(plan.Capacity)
	}

	p.plan = plan
	p.sampleRate = sampleRate
	p.delay = plan.Delay
	p.totalDelay = 0
	p.maxDelay = maxDelay
	p.counters = counters{}
	p.meters.Reset(sampleRate)
	p.prepared = true

	p.stats.publishPlan(sampleRate, plan, maxDelay)
	p.publish()

	p.logf("prepared: rate=%g %s max-delay=%d", sampleRate, plan, maxDelay)
	return nil
}

// Release frees the ring buffers. It is a no-op if Prepare was never called.
// Until the next Prepare, ProcessBlock passes audio through unprocessed.
func (p *Processor) Release() {
	if !p.prepared {
		return
	}
	for ch := range p.rings {
		p.rings[ch].Release()
	}
	p.prepared = false
	p.plan = Plan{}
	p.delay = 0
	p.stats.publishPlan(p.sampleRate, Plan{}, 0)
	p.publish()

	p.logf("released after %d blocks, total delay %d", p.counters.blocks, p.totalDelay)
}

// Prepared reports whether ring buffers are allocated.
func (p *Processor) Prepared() bool {
	return p.prepared
}

// Plan returns the current quantum plan (zero when not prepared).
func (p *Processor) Plan() Plan {
	return p.plan
}

// LatencySamples returns the structural latency of the current plan: the
// initial compensating delay a host should report for delay compensation.
func (p *Processor) LatencySamples() int {
	return p.plan.Latency()
}

// FlushSamples returns how much trailing silence a host must feed after the
// last input sample for all of it to reach the output: the structural
// latency plus one quantum, which bounds any delay grown at run time.
// It is zero when the processor is not prepared.
func (p *Processor) FlushSamples() int {
	if !p.prepared {
		return 0
	}
	return p.plan.Latency() + p.plan.Quantum
}

// Levels returns the latest pre/post meter snapshot in dB.
// Safe to call from any goroutine.
func (p *Processor) Levels() Levels {
	return p.meters.Levels()
}

// ProcessBlock runs one host callback. It consumes len(outLeft) samples from
// each input and writes exactly that many samples to each output. Inputs and
// outputs may alias. Blocks longer than the prepared block size are handled
// as consecutive sub-blocks.
//
// ProcessBlock never returns an error; see the package documentation for
// how invariant violations are handled.
func (p *Processor) ProcessBlock(inLeft, inRight, outLeft, outRight []float32) {
	n := min(len(outLeft), len(outRight), len(inLeft), len(inRight))
	if n < len(outLeft) || n < len(outRight) {
		// Mismatched host buffers: silence what cannot be filled.
		clear(outLeft[n:])
		clear(outRight[n:])
	}
	inLeft, inRight = inLeft[:n], inRight[:n]
	outLeft, outRight = outLeft[:n], outRight[:n]

	p.meters.PushPre(inLeft, inRight)

	if !p.prepared {
		copy(outLeft, inLeft)
		copy(outRight, inRight)
	} else {
		step := p.plan.HostBlockSize
		for off := 0; off < n; off += step {
			end := min(off+step, n)
			p.cycle(inLeft[off:end], inRight[off:end], outLeft[off:end], outRight[off:end])
		}
	}

	p.meters.PushPost(outLeft, outRight)

	if p.finisher != nil {
		p.finisher.FinishBlock()
	}

	p.counters.blocks++
	p.publish()
}

// cycle ingests, processes and emits one block no longer than the prepared
// host block size.
func (p *Processor) cycle(inLeft, inRight, outLeft, outRight []float32) {
	n := len(outLeft)
	l, r := &p.rings[left], &p.rings[right]

	// Ingest.
	if free := l.Free(); n > free {
		p.violation(&p.counters.overflows, "ring overflow: samples written vs free", n, free)
		dropped := l.Discard(n - free)
		r.Discard(dropped)
	}
	if written := l.Write(inLeft); written < n {
		// Discard only reaches processed samples.
		p.violation(&p.counters.overflows, "ring overflow: input samples written vs block", written, n)
	}
	r.Write(inRight)

	// Run the engine on every whole quantum.
	q := p.plan.Quantum
	for spanL := l.NextSpan(q); spanL != nil; spanL = l.NextSpan(q) {
		p.engine.ProcessQuantum(spanL, r.NextSpan(q))
		l.Advance(q)
		r.Advance(q)
		p.counters.quanta++
	}

	// Grow the compensating delay if processed output cannot cover n.
	if avail := l.Processed(); avail+p.delay < n {
		need := n - avail
		if need > p.maxDelay {
			need = max(p.maxDelay, p.delay)
		}
		p.delay = need
		p.counters.delayGrowths++
	}

	// Emit: owed silence first, then processed samples.
	z := min(p.delay, n)
	clear(outLeft[:z])
	clear(outRight[:z])
	p.delay -= z
	p.totalDelay += z

	got := l.Read(outLeft[z:])
	r.Read(outRight[z:])
	if z+got < n {
		p.violation(&p.counters.underflows, "output underflow: samples available vs requested", z+got, n)
		clear(outLeft[z+got:])
		clear(outRight[z+got:])
		p.totalDelay += n - (z + got)
	}
}

// violation records an invariant violation, or panics in strict mode.
func (p *Processor) violation(counter *uint64, what string, have, want int) {
	*counter++
	if p.cfg.Strict {
		panic(fmt.Errorf("%w: %s (%d vs %d)", ErrInvariantViolation, what, have, want))
	}
}

func (p *Processor) logf(format string, args ...any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Printf(format, args...)
	}
}
