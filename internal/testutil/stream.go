package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// StreamChecker verifies a re-blocked output stream against a ramp input
// that starts at 1. Zero samples are compensating silence; every other
// sample must be the next ramp value, so duplicates, gaps and reordering
// are all caught.
type StreamChecker struct {
	// Sign is applied to expected values, so a negated channel can be
	// checked with Sign = -1. Zero means +1.
	Sign float32

	next   int
	zeros  int
	failed bool
}

// Check consumes one output block.
func (c *StreamChecker) Check(t *testing.T, out []float32) bool {
	t.Helper()
	if c.failed {
		return false
	}
	if c.next == 0 {
		c.next = 1
	}
	sign := c.Sign
	if sign == 0 {
		sign = 1
	}

	for i, v := range out {
		if v == 0 {
			c.zeros++
			continue
		}
		want := sign * float32(c.next)
		if v != want {
			c.failed = true
			return assert.Fail(t, "stream discontinuity",
				"out[%d]=%v, want %v (after %d samples, %d zeros)", i, v, want, c.next-1, c.zeros)
		}
		c.next++
	}
	return true
}

// Samples returns how many non-silent samples have been verified.
func (c *StreamChecker) Samples() int {
	return max(c.next-1, 0)
}

// Zeros returns how many silent samples have been seen.
func (c *StreamChecker) Zeros() int {
	return c.zeros
}
