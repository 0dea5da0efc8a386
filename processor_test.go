package reblock

import (
	"bytes"
	"errors"
	"log"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-reblock/internal/testutil"
)

const testSampleRate = 48000.0

var identity = QuantumFunc(func(_, _ []float32) {})

func newStrict(t *testing.T, engine QuantumProcessor, hostBlockSize int) *Processor {
	t.Helper()
	p, err := New(engine, &Config{Strict: true})
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testSampleRate, hostBlockSize))
	return p
}

// streamer feeds a ramp (left) and its negation (right) through a processor
// and checks both outputs.
type streamer struct {
	p            *Processor
	next         int
	inL, inR     []float32
	outL, outR   []float32
	checkL       testutil.StreamChecker
	checkR       testutil.StreamChecker
	samplesSoFar int
}

func newStreamer(p *Processor, maxBlock int) *streamer {
	return &streamer{
		p:      p,
		next:   1,
		inL:    make([]float32, maxBlock),
		inR:    make([]float32, maxBlock),
		outL:   make([]float32, maxBlock),
		outR:   make([]float32, maxBlock),
		checkR: testutil.StreamChecker{Sign: -1},
	}
}

func (s *streamer) run(t *testing.T, n int) bool {
	t.Helper()
	for i := range n {
		s.inL[i] = float32(s.next + i)
		s.inR[i] = -float32(s.next + i)
	}
	s.next += n
	s.samplesSoFar += n

	s.p.ProcessBlock(s.inL[:n], s.inR[:n], s.outL[:n], s.outR[:n])
	return s.checkL.Check(t, s.outL[:n]) && s.checkR.Check(t, s.outR[:n])
}

// =============================================================================
// Construction and configuration
// =============================================================================

func TestNew_NilEngine(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(identity, &Config{MaxDelay: -1})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestPrepare_InvalidBlockSize(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)

	for _, block := range []int{0, -1, -1024} {
		err := p.Prepare(testSampleRate, block)
		require.ErrorIs(t, err, ErrConfiguration, "block %d", block)
	}
	assert.False(t, p.Prepared())
}

func TestPrepare_InvalidSampleRate(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)

	for _, rate := range []float64{0, -44100, 1e9} {
		require.ErrorIs(t, p.Prepare(rate, 512), ErrConfiguration, "rate %g", rate)
	}
}

func TestPrepare_MaxDelayBelowStructuralDelay(t *testing.T) {
	p, err := New(identity, &Config{MaxDelay: 10})
	require.NoError(t, err)

	// 100 samples needs 63 samples of structural delay.
	require.ErrorIs(t, p.Prepare(testSampleRate, 100), ErrConfiguration)
	// Power-of-two sizes need none.
	require.NoError(t, p.Prepare(testSampleRate, 128))
}

func TestPrepare_Plan(t *testing.T) {
	p := newStrict(t, identity, 100)

	plan := p.Plan()
	assert.Equal(t, 100, plan.HostBlockSize)
	assert.Equal(t, 64, plan.Quantum)
	assert.Equal(t, 63, plan.Delay)
	assert.Equal(t, 192, plan.Capacity)
	assert.Equal(t, 63, p.LatencySamples())

	st := p.Stats()
	assert.Equal(t, testSampleRate, st.SampleRate)
	assert.Equal(t, 192, st.Capacity)
	assert.Equal(t, 63, st.PendingDelay)
	assert.Equal(t, 192-100, st.MaxDelay)
}

func TestPrepare_Idempotent(t *testing.T) {
	p := newStrict(t, identity, 441)
	s := newStreamer(p, 441)
	for range 17 {
		require.True(t, s.run(t, 441))
	}
	require.NotZero(t, p.Stats().Blocks)

	require.NoError(t, p.Prepare(testSampleRate, 441))
	first := p.Stats()
	capacity := p.rings[left].Capacity()

	require.NoError(t, p.Prepare(testSampleRate, 441))
	second := p.Stats()

	assert.Equal(t, first, second)
	assert.Equal(t, capacity, p.rings[left].Capacity())
	assert.Equal(t, capacity, p.rings[right].Capacity())
	for ch := range p.rings {
		w, pr, r := p.rings[ch].Positions()
		assert.Zero(t, w)
		assert.Zero(t, pr)
		assert.Zero(t, r)
		assert.Zero(t, p.rings[ch].Used())
	}
	assert.Zero(t, second.TotalDelay)
	assert.Zero(t, second.Blocks)
	assert.Equal(t, p.Plan().Delay, second.PendingDelay)
}

func TestPrepare_BlockSizeChange(t *testing.T) {
	p := newStrict(t, identity, 512)
	assert.Equal(t, 512+256, p.rings[left].Capacity())

	require.NoError(t, p.Prepare(testSampleRate, 100))
	assert.Equal(t, 192, p.rings[left].Capacity())

	s := newStreamer(p, 100)
	for range 10 {
		require.True(t, s.run(t, 100))
	}
}

func TestPrepare_Logs(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(identity, &Config{Logger: log.New(&buf, "", 0)})
	require.NoError(t, err)

	require.NoError(t, p.Prepare(testSampleRate, 100))
	p.Release()

	assert.Contains(t, buf.String(), "prepared: rate=48000 block=100 quantum=64 delay=63")
	assert.Contains(t, buf.String(), "released after 0 blocks")
}

// =============================================================================
// Sample-accurate round trip
// =============================================================================

func TestProcessBlock_PowerOfTwoIsTransparent(t *testing.T) {
	for _, block := range []int{64, 128, 256, 512, 1024, 2048, 4096} {
		p := newStrict(t, identity, block)
		in := testutil.Ramp(1, block)
		outL := make([]float32, block)
		outR := make([]float32, block)

		for i := range 8 {
			for j := range in {
				in[j] = float32(i*block + j + 1)
			}
			p.ProcessBlock(in, in, outL, outR)
			require.Equal(t, in, outL, "block %d iteration %d", block, i)
			require.Equal(t, in, outR, "block %d iteration %d", block, i)
		}
		assert.Zero(t, p.Stats().TotalDelay, "block %d", block)
	}
}

func TestProcessBlock_NonPowerOfTwoDelay(t *testing.T) {
	p := newStrict(t, identity, 100)
	in := testutil.Ramp(1, 100)
	out := make([]float32, 100)
	outR := make([]float32, 100)

	p.ProcessBlock(in, in, out, outR)
	testutil.AssertAllZero(t, out[:63])
	assert.Equal(t, testutil.Ramp(1, 37), out[63:])

	next := testutil.Ramp(101, 100)
	p.ProcessBlock(next, next, out, outR)
	assert.Equal(t, testutil.Ramp(38, 100), out)

	st := p.Stats()
	assert.Equal(t, 63, st.TotalDelay)
	assert.Zero(t, st.PendingDelay)
	assert.Equal(t, 63, st.Buffered)
	assert.Equal(t, uint64(3), st.Quanta)
}

func TestProcessBlock_RoundTripWithJitter(t *testing.T) {
	blocks := []int{1, 32, 64, 100, 128, 200, 441, 480, 512, 1000, 1024, 2048, 4096}

	for _, block := range blocks {
		p := newStrict(t, identity, block)
		s := newStreamer(p, block)
		rng := rand.New(rand.NewPCG(uint64(block), 7))

		for call := range 1000 {
			n := 1 + rng.IntN(block)
			if !s.run(t, n) {
				t.Fatalf("block %d: stream broken at call %d (n=%d)", block, call, n)
			}
		}

		st := p.Stats()
		assert.Zero(t, st.Violations(), "block %d", block)
		assert.Equal(t, st.TotalDelay, s.checkL.Zeros(), "block %d", block)
		assert.Equal(t, st.TotalDelay, s.checkR.Zeros(), "block %d", block)
		assert.Equal(t, s.samplesSoFar, s.checkL.Samples()+st.Buffered, "block %d", block)
		assert.Equal(t, st.TotalDelay, st.Buffered, "block %d", block)
		assert.Less(t, st.TotalDelay, max(p.Plan().Quantum, 1), "block %d", block)
	}
}

func TestProcessBlock_NeverOverflows(t *testing.T) {
	for _, block := range []int{100, 256, 1000, 1024} {
		p := newStrict(t, identity, block)
		s := newStreamer(p, block)
		rng := rand.New(rand.NewPCG(3, uint64(block)))

		for range 2000 {
			n := block
			if rng.IntN(4) == 0 {
				n = 1 + rng.IntN(block)
			}
			require.True(t, s.run(t, n))
			assert.LessOrEqual(t, p.rings[left].Used()+block, p.rings[left].Capacity())
		}
		assert.Zero(t, p.Stats().Overflows)
	}
}

func TestProcessBlock_LargerThanPrepared(t *testing.T) {
	p := newStrict(t, identity, 100)
	s := newStreamer(p, 1000)

	for _, n := range []int{250, 1000, 101, 37, 999} {
		require.True(t, s.run(t, n), "n=%d", n)
	}
	assert.Zero(t, p.Stats().Violations())
}

func TestProcessBlock_EngineSeesEveryQuantumOnce(t *testing.T) {
	var seen []float32
	engine := QuantumFunc(func(l, r []float32) {
		require.Len(t, l, 64)
		require.Len(t, r, 64)
		seen = append(seen, l...)
		for i := range l {
			l[i] *= 2
			r[i] *= 2
		}
	})

	p := newStrict(t, engine, 100)
	in := testutil.Ramp(1, 1000)
	out := make([]float32, 1000)
	outR := make([]float32, 1000)
	for off := 0; off < 1000; off += 100 {
		p.ProcessBlock(in[off:off+100], in[off:off+100], out[off:off+100], outR[off:off+100])
	}

	assert.Equal(t, testutil.Ramp(1, len(seen)), seen)
	for i := 63; i < 1000; i++ {
		require.Equal(t, 2*float32(i-62), out[i])
	}
}

func TestProcessBlock_InPlace(t *testing.T) {
	p := newStrict(t, identity, 100)
	var checkL, checkR testutil.StreamChecker
	checkR.Sign = -1

	for i := range 20 {
		bufL := testutil.Ramp(1+i*100, 100)
		bufR := make([]float32, 100)
		for j := range bufL {
			bufR[j] = -bufL[j]
		}
		p.ProcessBlock(bufL, bufR, bufL, bufR)
		require.True(t, checkL.Check(t, bufL))
		require.True(t, checkR.Check(t, bufR))
	}
	assert.Equal(t, 63, checkL.Zeros())
}

func TestProcessBlock_MismatchedLengths(t *testing.T) {
	p := newStrict(t, identity, 32)
	in := testutil.Ramp(1, 32)
	outL := testutil.Constant(9, 64)
	outR := testutil.Constant(9, 64)

	p.ProcessBlock(in, in, outL, outR)
	assert.Equal(t, in, outL[:32])
	testutil.AssertAllZero(t, outL[32:])
	testutil.AssertAllZero(t, outR[32:])
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestProcessBlock_UnpreparedPassesThrough(t *testing.T) {
	called := false
	p, err := New(QuantumFunc(func(_, _ []float32) { called = true }), nil)
	require.NoError(t, err)

	in := testutil.Ramp(1, 100)
	out := make([]float32, 100)
	outR := make([]float32, 100)
	p.ProcessBlock(in, in, out, outR)

	assert.False(t, called)
	assert.Equal(t, in, out)
	assert.Equal(t, in, outR)
}

func TestRelease(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)
	p.Release() // never prepared: no-op

	require.NoError(t, p.Prepare(testSampleRate, 100))
	p.Release()
	assert.False(t, p.Prepared())
	assert.Zero(t, p.rings[left].Capacity())
	assert.Zero(t, p.Stats().Capacity)
	p.Release()

	in := testutil.Ramp(1, 100)
	out := make([]float32, 100)
	p.ProcessBlock(in, in, out, make([]float32, 100))
	assert.Equal(t, in, out)

	require.NoError(t, p.Prepare(testSampleRate, 100))
	assert.Equal(t, 192, p.rings[left].Capacity())
}

type hookedEngine struct {
	rate     float64
	quantum  int
	finished int
	err      error
}

func (h *hookedEngine) ProcessQuantum(_, _ []float32) {}

func (h *hookedEngine) PrepareQuantum(sampleRate float64, quantum int) error {
	h.rate, h.quantum = sampleRate, quantum
	return h.err
}

func (h *hookedEngine) FinishBlock() { h.finished++ }

func TestEngineHooks(t *testing.T) {
	h := &hookedEngine{}
	p := newStrict(t, h, 2048)
	assert.Equal(t, testSampleRate, h.rate)
	assert.Equal(t, 512, h.quantum)

	buf := make([]float32, 2048)
	for range 3 {
		p.ProcessBlock(buf, buf, buf, buf)
	}
	assert.Equal(t, 3, h.finished)

	h.err = errors.New("engine refused")
	err := p.Prepare(testSampleRate, 2048)
	require.ErrorIs(t, err, h.err)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "quantum 512")
}

// sizedEngine switches to the new quantum before failing, like an engine
// whose stages are prepared one by one, and panics on foreign quanta.
type sizedEngine struct {
	quantum int
	refuse  bool
	calls   int
}

func (e *sizedEngine) ProcessQuantum(l, _ []float32) {
	if len(l) != e.quantum {
		panic("engine got wrong quantum")
	}
	e.calls++
}

func (e *sizedEngine) PrepareQuantum(_ float64, quantum int) error {
	e.quantum = quantum
	if e.refuse {
		return errors.New("refused")
	}
	return nil
}

func TestPrepare_EngineFailureFallsBackToPassthrough(t *testing.T) {
	e := &sizedEngine{}
	p := newStrict(t, e, 256)

	s := newStreamer(p, 256)
	require.True(t, s.run(t, 256))
	require.Equal(t, 1, e.calls)

	e.refuse = true
	err := p.Prepare(testSampleRate, 100)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, p.Prepared())
	assert.Zero(t, p.Plan())
	assert.Zero(t, p.LatencySamples())
	assert.Zero(t, p.Stats().Capacity)

	in := testutil.Ramp(1, 256)
	outL := make([]float32, 256)
	outR := make([]float32, 256)
	assert.NotPanics(t, func() { p.ProcessBlock(in, in, outL, outR) })
	assert.Equal(t, in, outL)
	assert.Equal(t, in, outR)
	assert.Equal(t, 1, e.calls, "engine must not run after a failed prepare")

	e.refuse = false
	require.NoError(t, p.Prepare(testSampleRate, 100))
	assert.True(t, p.Prepared())
	assert.Equal(t, 64, p.Plan().Quantum)
}

func TestFlushSamples(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)
	assert.Zero(t, p.FlushSamples())

	require.NoError(t, p.Prepare(testSampleRate, 100))
	assert.Equal(t, 63+64, p.FlushSamples())

	require.NoError(t, p.Prepare(testSampleRate, 256))
	assert.Equal(t, 256, p.FlushSamples())
}

// Run-time delay growth never exceeds the flush allowance, so padding an
// input by FlushSamples always drains every sample.
func TestFlushSamples_CoversDelayGrowth(t *testing.T) {
	for _, block := range []int{64, 100, 256, 480, 1024} {
		p := newStrict(t, identity, block)
		rng := rand.New(rand.NewPCG(uint64(block), 7))

		const total = 20000
		in := testutil.Ramp(1, total)
		padded := make([]float32, total+p.FlushSamples())
		copy(padded, in)
		out := make([]float32, len(padded))
		outR := make([]float32, len(padded))

		for off := 0; off < len(padded); {
			n := min(1+rng.IntN(block), len(padded)-off)
			p.ProcessBlock(padded[off:off+n], padded[off:off+n], out[off:off+n], outR[off:off+n])
			off += n
		}

		var check testutil.StreamChecker
		require.True(t, check.Check(t, out), "block %d", block)
		assert.Equal(t, total, check.Samples(), "block %d", block)
		assert.LessOrEqual(t, p.Stats().TotalDelay, p.FlushSamples(), "block %d", block)
	}
}

// =============================================================================
// Delay ceiling and invariant handling
// =============================================================================

func recoverError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}

func TestDelayCeiling_Clamps(t *testing.T) {
	p, err := New(identity, &Config{MaxDelay: 16})
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testSampleRate, 1024))

	in := testutil.Ramp(1, 100)
	out := testutil.Constant(5, 100)
	outR := testutil.Constant(5, 100)
	p.ProcessBlock(in, in, out, outR)

	testutil.AssertAllZero(t, out)
	testutil.AssertAllZero(t, outR)

	st := p.Stats()
	assert.Equal(t, uint64(1), st.DelayGrowths)
	assert.Equal(t, uint64(1), st.Underflows)
	assert.Equal(t, 100, st.TotalDelay, "zero-filled tail shifts the output like owed silence")
}

func TestDelayCeiling_StrictPanics(t *testing.T) {
	p, err := New(identity, &Config{MaxDelay: 16, Strict: true})
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testSampleRate, 1024))

	in := testutil.Ramp(1, 100)
	err = recoverError(func() { p.ProcessBlock(in, in, make([]float32, 100), make([]float32, 100)) })
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, err.Error(), "underflow")
}

func TestDelayGrowth_WithinHeadroom(t *testing.T) {
	p := newStrict(t, identity, 1024)
	s := newStreamer(p, 1024)

	require.True(t, s.run(t, 1000))
	st := p.Stats()
	assert.Equal(t, uint64(1), st.DelayGrowths)
	assert.Equal(t, 1000-768, st.TotalDelay)

	require.True(t, s.run(t, 1024))
	assert.Equal(t, 232, p.Stats().TotalDelay)
}

func TestOverflow_Clamps(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testSampleRate, 100))

	// Corrupt the bookkeeping so the next block cannot fit.
	junk := make([]float32, 150)
	p.rings[left].Write(junk)
	p.rings[right].Write(junk)

	buf := make([]float32, 100)
	p.ProcessBlock(buf, buf, buf, buf)

	// Nothing processed can be discarded, so the block is also truncated.
	st := p.Stats()
	assert.Equal(t, uint64(2), st.Overflows)
	assert.LessOrEqual(t, st.Buffered, p.Plan().Capacity)
}

func TestOverflow_DropsOldestProcessed(t *testing.T) {
	p, err := New(identity, nil)
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testSampleRate, 100))

	// 128 processed and 22 unprocessed samples leave 42 free.
	junk := make([]float32, 150)
	for ch := range p.rings {
		p.rings[ch].Write(junk)
		p.rings[ch].Advance(128)
	}

	buf := make([]float32, 100)
	p.ProcessBlock(buf, buf, buf, buf)

	st := p.Stats()
	assert.Equal(t, uint64(1), st.Overflows, "discarding processed samples makes room for the block")
	assert.LessOrEqual(t, st.Buffered, p.Plan().Capacity)
}

func TestOverflow_StrictPanics(t *testing.T) {
	p := newStrict(t, identity, 100)
	junk := make([]float32, 150)
	p.rings[left].Write(junk)
	p.rings[right].Write(junk)

	buf := make([]float32, 100)
	err := recoverError(func() { p.ProcessBlock(buf, buf, buf, buf) })
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, err.Error(), "overflow")
}

// =============================================================================
// Metering and concurrency
// =============================================================================

func TestLevels(t *testing.T) {
	gain := QuantumFunc(func(l, r []float32) {
		for i := range l {
			l[i] *= 0.1
			r[i] *= 0.1
		}
	})
	p := newStrict(t, gain, 256)

	in := testutil.Constant(1, 256)
	outL := make([]float32, 256)
	outR := make([]float32, 256)
	p.ProcessBlock(in, in, outL, outR)

	levels := p.Levels()
	assert.InDelta(t, 0.0, float64(levels[PreLeft]), testutil.DBTolerance)
	assert.InDelta(t, 0.0, float64(levels[PreRight]), testutil.DBTolerance)
	assert.InDelta(t, -20.0, float64(levels[PostLeft]), testutil.DBTolerance)
	assert.InDelta(t, -20.0, float64(levels[PostRight]), testutil.DBTolerance)
}

func TestStats_ConcurrentReaders(t *testing.T) {
	p := newStrict(t, identity, 480)
	s := newStreamer(p, 480)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = p.Stats()
					_ = p.Levels()
				}
			}
		}()
	}

	for range 500 {
		require.True(t, s.run(t, 480))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(500), p.Stats().Blocks)
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkProcessBlock(b *testing.B) {
	for _, block := range []int{128, 441, 1024} {
		b.Run("block="+strconv.Itoa(block), func(b *testing.B) {
			p, err := New(identity, nil)
			require.NoError(b, err)
			require.NoError(b, p.Prepare(testSampleRate, block))

			inL, inR := make([]float32, block), make([]float32, block)
			outL, outR := make([]float32, block), make([]float32, block)

			b.ReportAllocs()
			for b.Loop() {
				p.ProcessBlock(inL, inR, outL, outR)
			}
		})
	}
}
