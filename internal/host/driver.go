package host

import (
	"context"
	"errors"
	"fmt"
)

// ErrLengthMismatch indicates channel buffers of different lengths.
var ErrLengthMismatch = errors.New("channel buffers differ in length")

// BlockProcessor is the callback the host drives. *reblock.Processor
// satisfies it.
type BlockProcessor interface {
	ProcessBlock(inLeft, inRight, outLeft, outRight []float32)
}

// Stats summarizes a Run.
type Stats struct {
	Callbacks int
	Frames    int
	MinBlock  int
	MaxBlock  int
}

// Driver feeds whole planar buffers through a BlockProcessor in callback
// sizes drawn from a Jitter, never larger than BlockSize.
type Driver struct {
	proc      BlockProcessor
	blockSize int
	jitter    *Jitter

	// OnBlock, if set, runs after every callback with the number of frames
	// processed so far.
	OnBlock func(done int)
}

// NewDriver creates a driver. A nil jitter calls with exactly blockSize
// frames (the last callback may be shorter).
func NewDriver(proc BlockProcessor, blockSize int, jitter *Jitter) (*Driver, error) {
	if proc == nil {
		return nil, errors.New("host: nil processor")
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("host: block size must be positive (got %d)", blockSize)
	}
	if jitter == nil {
		jitter, _ = Fixed(blockSize)
	}
	if jitter.Max > blockSize {
		return nil, fmt.Errorf("%w: max %d exceeds block size %d", ErrInvalidJitter, jitter.Max, blockSize)
	}
	return &Driver{proc: proc, blockSize: blockSize, jitter: jitter}, nil
}

// BlockSize returns the largest callback size.
func (d *Driver) BlockSize() int {
	return d.blockSize
}

// Run processes inLeft/inRight into outLeft/outRight. All four slices must
// have the same length. Cancelling ctx stops between callbacks.
func (d *Driver) Run(ctx context.Context, inLeft, inRight, outLeft, outRight []float32) (Stats, error) {
	total := len(inLeft)
	if len(inRight) != total || len(outLeft) != total || len(outRight) != total {
		return Stats{}, fmt.Errorf("%w: in %d/%d, out %d/%d",
			ErrLengthMismatch, len(inLeft), len(inRight), len(outLeft), len(outRight))
	}

	var st Stats
	for st.Frames < total {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		n := min(d.jitter.Next(), total-st.Frames)
		lo, hi := st.Frames, st.Frames+n
		d.proc.ProcessBlock(inLeft[lo:hi], inRight[lo:hi], outLeft[lo:hi], outRight[lo:hi])

		if st.Callbacks == 0 || n < st.MinBlock {
			st.MinBlock = n
		}
		st.MaxBlock = max(st.MaxBlock, n)
		st.Callbacks++
		st.Frames = hi

		if d.OnBlock != nil {
			d.OnBlock(st.Frames)
		}
	}
	return st, nil
}
