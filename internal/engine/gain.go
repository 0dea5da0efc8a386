package engine

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/go-audio-reblock/internal/simdops"
)

// Gain scales a buffer by a fixed amount set in decibels. SetDecibels may
// be called from any goroutine while Process runs.
type Gain struct {
	linear atomic.Uint32 // float32 bits
	ops    *simdops.Ops
}

// NewGain creates a gain stage at db decibels.
func NewGain(db float64) *Gain {
	g := &Gain{ops: simdops.Float32Ops()}
	g.SetDecibels(db)
	return g
}

// SetDecibels changes the gain.
func (g *Gain) SetDecibels(db float64) {
	g.linear.Store(math.Float32bits(float32(math.Pow(10, db/dbPerDecade))))
}

// Decibels returns the current gain in dB.
func (g *Gain) Decibels() float64 {
	return dbPerDecade * math.Log10(float64(g.Linear()))
}

// Linear returns the current gain as an amplitude factor.
func (g *Gain) Linear() float32 {
	return math.Float32frombits(g.linear.Load())
}

// Process scales buf in place.
func (g *Gain) Process(buf []float32) {
	k := g.Linear()
	if k == 1 {
		return
	}
	g.ops.Scale(buf, buf, k)
}
