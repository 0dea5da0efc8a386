// Package playback plays a processed stream through the system audio
// device. The device pulls audio in whatever chunk sizes it likes, which
// makes it a real arbitrary-block host for the processor.
package playback

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tphakala/go-audio-reblock/internal/simdops"
)

const (
	numChannels    = 2
	bytesPerSample = 4
	bytesPerFrame  = numChannels * bytesPerSample
)

// BlockProcessor is the callback a Stream drives. *reblock.Processor
// satisfies it.
type BlockProcessor interface {
	ProcessBlock(inLeft, inRight, outLeft, outRight []float32)
}

// Source supplies planar input. Read fills up to len(left) frames and
// returns how many it wrote; zero means the source is exhausted.
type Source interface {
	Read(left, right []float32) int
}

// SliceSource reads from in-memory channels.
type SliceSource struct {
	Left, Right []float32
	pos         int
}

// Read implements Source.
func (s *SliceSource) Read(left, right []float32) int {
	n := copy(left, s.Left[s.pos:])
	copy(right[:n], s.Right[s.pos:])
	s.pos += n
	return n
}

// Stream is an io.Reader producing interleaved float32 little-endian stereo.
// Each Read pulls one block from the source and runs it through the
// processor. After the source ends, flush frames of silence are fed so the
// processor's latency drains before io.EOF.
type Stream struct {
	src  Source
	proc BlockProcessor
	ops  *simdops.Ops

	flush int

	inL, inR, outL, outR []float32
	interleaved          []float32

	frames atomic.Int64
	done   chan struct{}
	once   sync.Once
}

// NewStream creates a stream. flush is usually the processor's
// FlushSamples, which also covers delay grown while playing.
func NewStream(src Source, proc BlockProcessor, flush int) *Stream {
	return &Stream{
		src:   src,
		proc:  proc,
		ops:   simdops.Float32Ops(),
		flush: max(flush, 0),
		done:  make(chan struct{}),
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	s.grow(frames)

	n := s.src.Read(s.inL[:frames], s.inR[:frames])
	if pad := min(frames-n, s.flush); pad > 0 {
		clear(s.inL[n : n+pad])
		clear(s.inR[n : n+pad])
		s.flush -= pad
		n += pad
	}
	if n == 0 {
		s.once.Do(func() { close(s.done) })
		return 0, io.EOF
	}

	s.proc.ProcessBlock(s.inL[:n], s.inR[:n], s.outL[:n], s.outR[:n])

	samples := s.interleaved[:numChannels*n]
	s.ops.Interleave2(samples, s.outL[:n], s.outR[:n])
	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}

	s.frames.Add(int64(n))
	return n * bytesPerFrame, nil
}

// Frames returns how many frames have been produced.
func (s *Stream) Frames() int64 {
	return s.frames.Load()
}

// Done is closed once the stream has returned io.EOF.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// grow sizes the work buffers for frames. Only the first few device
// callbacks allocate.
func (s *Stream) grow(frames int) {
	if len(s.inL) >= frames {
		return
	}
	s.inL = make([]float32, frames)
	s.inR = make([]float32, frames)
	s.outL = make([]float32, frames)
	s.outR = make([]float32, frames)
	s.interleaved = make([]float32, numChannels*frames)
}
