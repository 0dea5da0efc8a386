// Package filter designs FIR impulse responses for the convolution engine.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"
)

const (
	minTaps = 3
	maxTaps = 8191

	// Default design parameters for a speaker-cabinet style rolloff.
	DefaultAttenuation  = 60.0
	DefaultTransitionHz = 1000.0

	sincZeroThreshold = 1e-10
	minMagnitude      = 1e-10
	dbPerDecade       = 20.0
)

// ErrInvalidFilter indicates lowpass parameters that cannot be designed.
var ErrInvalidFilter = errors.New("invalid filter parameters")

// Lowpass describes a Kaiser-windowed sinc lowpass filter in Hz.
type Lowpass struct {
	SampleRate   float64
	CutoffHz     float64
	TransitionHz float64 // zero selects DefaultTransitionHz
	Attenuation  float64 // stopband attenuation in dB; zero selects DefaultAttenuation
}

func (l Lowpass) withDefaults() Lowpass {
	if l.TransitionHz == 0 {
		l.TransitionHz = DefaultTransitionHz
	}
	if l.Attenuation == 0 {
		l.Attenuation = DefaultAttenuation
	}
	return l
}

// Validate checks if the parameters are valid.
func (l Lowpass) Validate() error {
	l = l.withDefaults()
	nyquist := l.SampleRate / 2
	switch {
	case l.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %g", ErrInvalidFilter, l.SampleRate)
	case l.CutoffHz <= 0 || l.CutoffHz >= nyquist:
		return fmt.Errorf("%w: cutoff %g Hz outside (0, %g)", ErrInvalidFilter, l.CutoffHz, nyquist)
	case l.TransitionHz < 0:
		return fmt.Errorf("%w: transition band %g Hz", ErrInvalidFilter, l.TransitionHz)
	case l.Attenuation < 0:
		return fmt.Errorf("%w: attenuation %g dB", ErrInvalidFilter, l.Attenuation)
	}
	return nil
}

// Taps returns the filter length Design will produce.
func (l Lowpass) Taps() int {
	l = l.withDefaults()
	return EstimateTaps(l.Attenuation, l.TransitionHz/l.SampleRate)
}

// Design returns the impulse response, normalized to unity gain at DC.
// It is linear phase, so it delays the signal by (Taps()-1)/2 samples.
func (l Lowpass) Design() ([]float32, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	l = l.withDefaults()

	taps := l.Taps()
	fc := l.CutoffHz / l.SampleRate
	window := KaiserWindow(taps, KaiserBeta(l.Attenuation))
	center := float64(taps-1) / 2

	h := make([]float64, taps)
	for n := range h {
		x := float64(n) - center
		if math.Abs(x) < sincZeroThreshold {
			h[n] = 2 * fc
		} else {
			h[n] = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
		h[n] *= window[n]
	}

	if sum := f64.Sum(h); math.Abs(sum) > sincZeroThreshold {
		f64.Scale(h, h, 1/sum)
	}

	out := make([]float32, taps)
	for i, v := range h {
		out[i] = float32(v)
	}
	return out, nil
}

// KaiserWindow generates a symmetric Kaiser window with peak 1.
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}
	window := make([]float64, length)
	if length == 1 {
		window[0] = 1
		return window
	}

	alpha := float64(length-1) / 2
	i0Beta := BesselI0(beta)
	for n := range window {
		x := (float64(n) - alpha) / alpha
		window[n] = BesselI0(beta*math.Sqrt(1-x*x)) / i0Beta
	}
	return window
}

// ResponseDB evaluates the magnitude response of coeffs at freqHz, in dB.
func ResponseDB(coeffs []float32, freqHz, sampleRate float64) float64 {
	omega := 2 * math.Pi * freqHz / sampleRate
	var re, im float64
	for n, h := range coeffs {
		re += float64(h) * math.Cos(omega*float64(n))
		im -= float64(h) * math.Sin(omega*float64(n))
	}
	return dbPerDecade * math.Log10(max(math.Hypot(re, im), minMagnitude))
}
