// Package testutil provides reusable test helpers for the re-blocking tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-6
	DBTolerance      = 0.01
)

// Ramp returns n samples counting up from start: start, start+1, ...
// float32 represents every integer up to 2^24 exactly.
func Ramp(start, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(start + i)
	}
	return s
}

// Constant returns n copies of v.
func Constant(v float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Sine returns n samples of a unit sine at freq Hz.
func Sine(freq, sampleRate float64, n int) []float32 {
	s := make([]float32, n)
	omega := 2 * math.Pi * freq / sampleRate
	for i := range s {
		s[i] = float32(math.Sin(omega * float64(i)))
	}
	return s
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		f := float64(v)
		if math.IsNaN(f) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(f, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllZero verifies that every element is exactly zero.
func AssertAllZero(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v != 0 {
			return assert.Fail(t, "non-zero sample", "s[%d]=%f", i, v)
		}
	}
	return true
}

// AssertSlicesInDelta verifies two slices match element-wise within delta.
func AssertSlicesInDelta(t *testing.T, expected, actual []float32, delta float64, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Len(t, actual, len(expected), msgAndArgs...) {
		return false
	}
	for i := range expected {
		if !assert.InDelta(t, expected[i], actual[i], delta, "index %d", i) {
			return false
		}
	}
	return true
}
