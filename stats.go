package reblock

import (
	"math"
	"sync/atomic"
)

// Stats is a diagnostic snapshot of a Processor.
type Stats struct {
	SampleRate    float64
	HostBlockSize int
	Quantum       int
	Capacity      int
	MaxDelay      int

	// PendingDelay is silence still owed to the output.
	PendingDelay int

	// TotalDelay is the silence emitted since Prepare: the current offset
	// between input and output sample indices.
	TotalDelay int

	// Buffered is the number of samples held in each ring.
	Buffered int

	Blocks       uint64
	Quanta       uint64
	DelayGrowths uint64
	Overflows    uint64
	Underflows   uint64
}

// Violations returns the number of invariant violations recorded.
func (s Stats) Violations() uint64 {
	return s.Overflows + s.Underflows
}

// counters are owned by the audio thread.
type counters struct {
	blocks       uint64
	quanta       uint64
	delayGrowths uint64
	overflows    uint64
	underflows   uint64
}

// publishedStats mirrors processor state for readers on other goroutines.
type publishedStats struct {
	sampleRate    atomic.Uint64 // float64 bits
	hostBlockSize atomic.Int64
	quantum       atomic.Int64
	capacity      atomic.Int64
	maxDelay      atomic.Int64

	pendingDelay atomic.Int64
	totalDelay   atomic.Int64
	buffered     atomic.Int64

	blocks       atomic.Uint64
	quanta       atomic.Uint64
	delayGrowths atomic.Uint64
	overflows    atomic.Uint64
	underflows   atomic.Uint64
}

func (s *publishedStats) publishPlan(sampleRate float64, plan Plan, maxDelay int) {
	s.sampleRate.Store(math.Float64bits(sampleRate))
	s.hostBlockSize.Store(int64(plan.HostBlockSize))
	s.quantum.Store(int64(plan.Quantum))
	s.capacity.Store(int64(plan.Capacity))
	s.maxDelay.Store(int64(maxDelay))
}

// publish copies audio-thread state into the atomics. It runs at the end of
// every ProcessBlock and after Prepare/Release.
func (p *Processor) publish() {
	s := &p.stats
	s.pendingDelay.Store(int64(p.delay))
	s.totalDelay.Store(int64(p.totalDelay))
	s.buffered.Store(int64(p.rings[left].Used()))
	s.blocks.Store(p.counters.blocks)
	s.quanta.Store(p.counters.quanta)
	s.delayGrowths.Store(p.counters.delayGrowths)
	s.overflows.Store(p.counters.overflows)
	s.underflows.Store(p.counters.underflows)
}

// Stats returns a diagnostic snapshot. Safe to call from any goroutine;
// fields are individually consistent, not a single atomic view.
func (p *Processor) Stats() Stats {
	s := &p.stats
	return Stats{
		SampleRate:    math.Float64frombits(s.sampleRate.Load()),
		HostBlockSize: int(s.hostBlockSize.Load()),
		Quantum:       int(s.quantum.Load()),
		Capacity:      int(s.capacity.Load()),
		MaxDelay:      int(s.maxDelay.Load()),
		PendingDelay:  int(s.pendingDelay.Load()),
		TotalDelay:    int(s.totalDelay.Load()),
		Buffered:      int(s.buffered.Load()),
		Blocks:        s.blocks.Load(),
		Quanta:        s.quanta.Load(),
		DelayGrowths:  s.delayGrowths.Load(),
		Overflows:     s.overflows.Load(),
		Underflows:    s.underflows.Load(),
	}
}
