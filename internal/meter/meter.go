// Package meter provides smoothed RMS level meters with fast-attack,
// slow-release ballistics, as shown on pre/post level displays.
package meter

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/go-audio-reblock/internal/simdops"
)

// Ballistics constants.
const (
	// FloorDB is the level reported for silence.
	FloorDB = -100.0

	// ReleaseSeconds is how long a falling level takes to reach its target.
	ReleaseSeconds = 0.5

	// dbPerDecade converts amplitude ratios to decibels.
	dbPerDecade = 20.0
)

// Meter tracks the RMS level of a signal in decibels.
//
// Rising levels are shown immediately. Falling levels ramp linearly toward
// the new value over ReleaseSeconds. A lower target set while a ramp is
// running does not restart the ramp if it equals the current target.
//
// Push and Reset must be called from a single goroutine. Level may be
// called from any goroutine.
type Meter struct {
	current       float64
	target        float64
	step          float64
	countdown     int
	stepsToTarget int

	published atomic.Uint32 // float32 bits of current
}

// New creates a meter for the given sample rate.
func New(sampleRate float64) *Meter {
	m := &Meter{}
	m.Reset(sampleRate)
	return m
}

// Reset sets the release ramp length for sampleRate and returns the meter
// to FloorDB. It must be called whenever the sample rate changes.
func (m *Meter) Reset(sampleRate float64) {
	m.stepsToTarget = int(math.Floor(ReleaseSeconds * sampleRate))
	m.setCurrentAndTarget(FloorDB)
}

// Push feeds one block of samples to the meter.
func (m *Meter) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	m.skip(len(samples))

	level := GainToDecibels(RMS(samples))
	if level < m.current {
		m.setTarget(level)
	} else {
		m.setCurrentAndTarget(level)
	}
	m.publish()
}

// Current returns the smoothed level in dB.
func (m *Meter) Current() float64 {
	return m.current
}

// Target returns the level the meter is ramping toward, in dB.
func (m *Meter) Target() float64 {
	return m.target
}

// Level returns the last published level in dB. Safe for concurrent use.
func (m *Meter) Level() float32 {
	return math.Float32frombits(m.published.Load())
}

func (m *Meter) setTarget(v float64) {
	if v == m.target {
		return
	}
	if m.stepsToTarget <= 0 {
		m.setCurrentAndTarget(v)
		return
	}
	m.target = v
	m.countdown = m.stepsToTarget
	m.step = (m.target - m.current) / float64(m.countdown)
}

func (m *Meter) setCurrentAndTarget(v float64) {
	m.current = v
	m.target = v
	m.countdown = 0
	m.step = 0
	m.publish()
}

// skip advances the ramp by n samples.
func (m *Meter) skip(n int) {
	if m.countdown <= 0 {
		return
	}
	if n >= m.countdown {
		m.current = m.target
		m.countdown = 0
		return
	}
	m.current += m.step * float64(n)
	m.countdown -= n
}

func (m *Meter) publish() {
	m.published.Store(math.Float32bits(float32(m.current)))
}

// RMS returns sqrt(mean(x^2)) of samples, or 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(simdops.SumSquares(samples) / float64(len(samples)))
}

// GainToDecibels converts a linear gain to dB, clamped below at FloorDB.
func GainToDecibels(gain float64) float64 {
	if gain <= 0 {
		return FloorDB
	}
	return math.Max(FloorDB, dbPerDecade*math.Log10(gain))
}

// DecibelsToGain converts dB to a linear gain; FloorDB and below map to 0.
func DecibelsToGain(db float64) float64 {
	if db <= FloorDB {
		return 0
	}
	return math.Pow(10, db/dbPerDecade)
}
