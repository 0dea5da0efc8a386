package engine

import (
	"fmt"
	"strings"
	"sync/atomic"

	reblock "github.com/tphakala/go-audio-reblock"
)

// Mode selects how the two input channels reach the two racks.
type Mode int32

// Routing modes.
const (
	// ModeMono runs the left input through rack A's mono section and copies
	// the result to the right channel.
	ModeMono Mode = iota

	// ModeDualMono feeds the left input to both racks' mono sections:
	// rack A produces the left output, rack B the right output.
	ModeDualMono

	// ModeStereo runs the left input through rack A and the right input
	// through rack B.
	ModeStereo
)

var modeNames = [...]string{
	ModeMono:     "mono",
	ModeDualMono: "dual",
	ModeStereo:   "stereo",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int32(m))
}

// ParseMode parses "mono", "dual" (or "dual-mono") and "stereo".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mono":
		return ModeMono, nil
	case "dual", "dual-mono", "dualmono":
		return ModeDualMono, nil
	case "stereo":
		return ModeStereo, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// routing is the control state in effect for one host block.
type routing struct {
	mode         Mode
	muteA, muteB bool
}

// Router drives two racks from a reblock.Processor. Mode and mute changes
// may be made from any goroutine; they take effect at the next host block
// boundary so that every quantum of a block is routed the same way.
//
// In both dual-mono and stereo modes a muted side is silenced and its mono
// section skipped. Rack A's stereo section always runs last, on both
// channels. Rack B's stereo section is not used.
type Router struct {
	a, b *Rack

	mode         atomic.Int32
	muteA, muteB atomic.Bool

	cur    routing
	blocks atomic.Uint64
}

var (
	_ reblock.QuantumProcessor = (*Router)(nil)
	_ reblock.Preparer         = (*Router)(nil)
	_ reblock.BlockFinisher    = (*Router)(nil)
)

// NewRouter creates a router over racks a and b in ModeStereo. Nil racks
// are replaced by empty ones.
func NewRouter(a, b *Rack) *Router {
	if a == nil {
		a = &Rack{}
	}
	if b == nil {
		b = &Rack{}
	}
	r := &Router{a: a, b: b}
	r.mode.Store(int32(ModeStereo))
	r.latch()
	return r
}

// SetMode selects the routing mode.
func (r *Router) SetMode(m Mode) {
	r.mode.Store(int32(m))
}

// Mode returns the most recently selected routing mode.
func (r *Router) Mode() Mode {
	return Mode(r.mode.Load())
}

// SetMute mutes or unmutes the mono sections of racks A and B.
func (r *Router) SetMute(a, b bool) {
	r.muteA.Store(a)
	r.muteB.Store(b)
}

// Mutes returns the most recently selected mute states.
func (r *Router) Mutes() (a, b bool) {
	return r.muteA.Load(), r.muteB.Load()
}

// Blocks returns how many host blocks have finished.
func (r *Router) Blocks() uint64 {
	return r.blocks.Load()
}

// PrepareQuantum prepares both racks and applies pending control changes.
func (r *Router) PrepareQuantum(sampleRate float64, quantum int) error {
	if err := r.a.PrepareQuantum(sampleRate, quantum); err != nil {
		return fmt.Errorf("rack A: %w", err)
	}
	if err := r.b.PrepareQuantum(sampleRate, quantum); err != nil {
		return fmt.Errorf("rack B: %w", err)
	}
	r.latch()
	return nil
}

// FinishBlock notifies both racks and applies pending control changes.
func (r *Router) FinishBlock() {
	r.a.FinishBlock()
	r.b.FinishBlock()
	r.latch()
	r.blocks.Add(1)
}

// ProcessQuantum routes one quantum through the racks.
func (r *Router) ProcessQuantum(left, right []float32) {
	switch r.cur.mode {
	case ModeMono:
		r.a.ProcessMono(left)
		copy(right, left)

	case ModeDualMono:
		// Rack B reads the dry left input, so it runs first.
		if r.cur.muteB {
			clear(right)
		} else {
			copy(right, left)
			r.b.ProcessMono(right)
		}
		if r.cur.muteA {
			clear(left)
		} else {
			r.a.ProcessMono(left)
		}

	default:
		if r.cur.muteB {
			clear(right)
		} else {
			r.b.ProcessMono(right)
		}
		if r.cur.muteA {
			clear(left)
		} else {
			r.a.ProcessMono(left)
		}
	}

	r.a.ProcessStereo(left, right)
}

func (r *Router) latch() {
	r.cur = routing{
		mode:  Mode(r.mode.Load()),
		muteA: r.muteA.Load(),
		muteB: r.muteB.Load(),
	}
}
