package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(start, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(start + i)
	}
	return s
}

// =============================================================================
// Construction
// =============================================================================

func TestNew(t *testing.T) {
	b := New(192)
	assert.Equal(t, 192, b.Capacity())
	assert.Equal(t, 192, b.Free())
	assert.Zero(t, b.Used())

	w, p, r := b.Positions()
	assert.Zero(t, w)
	assert.Zero(t, p)
	assert.Zero(t, r)
}

func TestNew_MinimumCapacity(t *testing.T) {
	b := New(0)
	assert.Equal(t, 1, b.Capacity())
}

func TestReset_ReusesStorage(t *testing.T) {
	b := New(128)
	b.Write(ramp(1, 100))
	b.Advance(64)

	before := &b.data[0]
	b.Reset(128)

	assert.Same(t, before, &b.data[0], "same capacity must keep the allocation")
	assert.Zero(t, b.Used())
	for _, v := range b.data {
		require.Zero(t, v)
	}

	b.Reset(256)
	assert.Equal(t, 256, b.Capacity())
	assert.Len(t, b.data, 256)
}

func TestRelease(t *testing.T) {
	b := New(64)
	b.Release()
	assert.Nil(t, b.data)
	assert.Zero(t, b.Capacity())
	assert.Zero(t, b.Write(ramp(0, 4)))
}

// =============================================================================
// Write / process / read cycle
// =============================================================================

func TestCycle_Wraparound(t *testing.T) {
	const q = 64
	b := New(3 * q)

	next := 1
	expect := 1
	out := make([]float32, 100)

	for range 50 {
		written := b.Write(ramp(next, 100))
		require.Equal(t, 100, written)
		next += written

		for span := b.NextSpan(q); span != nil; span = b.NextSpan(q) {
			require.Len(t, span, q)
			b.Advance(q)
		}
		assert.Less(t, b.Unprocessed(), q)

		got := b.Read(out)
		for i := range got {
			require.Equal(t, float32(expect), out[i])
			expect++
		}
	}
}

func TestNextSpan_RequiresFullQuantum(t *testing.T) {
	b := New(128)
	b.Write(ramp(0, 63))
	assert.Nil(t, b.NextSpan(64))

	b.Write(ramp(63, 1))
	span := b.NextSpan(64)
	require.NotNil(t, span)
	assert.Equal(t, float32(0), span[0])
	assert.Equal(t, float32(63), span[63])
}

func TestNextSpan_ProcessesInPlace(t *testing.T) {
	b := New(8)
	b.Write(ramp(1, 4))

	span := b.NextSpan(4)
	for i := range span {
		span[i] *= 10
	}
	b.Advance(4)

	out := make([]float32, 4)
	require.Equal(t, 4, b.Read(out))
	assert.Equal(t, []float32{10, 20, 30, 40}, out)
}

func TestWrite_ClampsToFree(t *testing.T) {
	b := New(10)
	assert.Equal(t, 8, b.Write(ramp(0, 8)))
	assert.Equal(t, 2, b.Write(ramp(8, 5)))
	assert.Zero(t, b.Free())
	assert.Zero(t, b.Write(ramp(0, 1)))
}

func TestRead_SplitsAroundWrap(t *testing.T) {
	b := New(8)
	b.Write(ramp(0, 6))
	b.Advance(6)
	out := make([]float32, 6)
	b.Read(out)

	// write and read now straddle the end of storage
	b.Write(ramp(100, 5))
	b.Advance(5)
	out = make([]float32, 5)
	require.Equal(t, 5, b.Read(out))
	assert.Equal(t, []float32{100, 101, 102, 103, 104}, out)

	w, p, r := b.Positions()
	assert.Equal(t, 3, w)
	assert.Equal(t, 3, p)
	assert.Equal(t, 3, r)
}

func TestRead_OnlyProcessed(t *testing.T) {
	b := New(16)
	b.Write(ramp(0, 10))
	b.Advance(4)

	out := make([]float32, 10)
	assert.Equal(t, 4, b.Read(out))
	assert.Zero(t, b.Read(out))
}

func TestAdvanceAndDiscard_Clamp(t *testing.T) {
	b := New(16)
	b.Write(ramp(0, 5))
	assert.Equal(t, 5, b.Advance(10))
	assert.Zero(t, b.Advance(-3))

	assert.Equal(t, 2, b.Discard(2))
	assert.Equal(t, 3, b.Discard(10))
	assert.Zero(t, b.Used())
}
