// Package ring implements the fixed-capacity circular sample store used by
// the block processor, one Buffer per audio channel.
//
// A Buffer carries three cursors. Samples are written at the write cursor,
// processed in place in whole quanta at the process cursor, and read out at
// the read cursor:
//
//	read <= process <= write   (circularly)
//
// [process, write) holds ingested samples the engine has not seen yet;
// [read, process) holds processed samples waiting to be emitted.
// None of the methods allocate; storage is sized once by New or Reset.
package ring

// Buffer is a single-channel ring with write, process and read cursors.
// It is not safe for concurrent use.
type Buffer struct {
	data     []float32
	capacity int

	writePos   int
	processPos int
	readPos    int

	unprocessed int // samples in [processPos, writePos)
	processed   int // samples in [readPos, processPos)
}

// New creates a buffer holding capacity samples.
func New(capacity int) *Buffer {
	b := &Buffer{}
	b.Reset(capacity)
	return b
}

// Reset rewinds all cursors to zero and clears the storage. The storage is
// reallocated only if capacity differs from the current one.
func (b *Buffer) Reset(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity != len(b.data) {
		b.data = make([]float32, capacity)
	} else {
		clear(b.data)
	}
	b.capacity = capacity
	b.writePos, b.processPos, b.readPos = 0, 0, 0
	b.unprocessed, b.processed = 0, 0
}

// Release drops the storage. The buffer must be Reset before reuse.
func (b *Buffer) Release() {
	b.data = nil
	b.capacity = 0
	b.writePos, b.processPos, b.readPos = 0, 0, 0
	b.unprocessed, b.processed = 0, 0
}

// Capacity returns the number of samples the buffer can hold.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Used returns the number of samples between the read and write cursors.
func (b *Buffer) Used() int {
	return b.unprocessed + b.processed
}

// Free returns how many samples can be written without overtaking the
// read cursor.
func (b *Buffer) Free() int {
	return b.capacity - b.Used()
}

// Unprocessed returns the number of written samples not yet processed.
func (b *Buffer) Unprocessed() int {
	return b.unprocessed
}

// Processed returns the number of processed samples not yet read.
func (b *Buffer) Processed() int {
	return b.processed
}

// Positions returns the write, process and read cursors.
func (b *Buffer) Positions() (write, process, read int) {
	return b.writePos, b.processPos, b.readPos
}

// Write copies src into the ring at the write cursor, wrapping at the end
// of storage. At most Free() samples are written; the number written is
// returned.
func (b *Buffer) Write(src []float32) int {
	n := min(len(src), b.Free())
	if n == 0 {
		return 0
	}

	first := min(n, b.capacity-b.writePos)
	copy(b.data[b.writePos:b.writePos+first], src[:first])
	if first < n {
		copy(b.data[:n-first], src[first:n])
	}

	b.writePos = b.wrap(b.writePos + n)
	b.unprocessed += n
	return n
}

// NextSpan returns the contiguous span of q unprocessed samples starting at
// the process cursor, or nil if fewer than q samples are waiting or the span
// would straddle the end of storage. The caller processes the span in place
// and then calls Advance(q).
func (b *Buffer) NextSpan(q int) []float32 {
	if q <= 0 || b.unprocessed < q || b.processPos+q > b.capacity {
		return nil
	}
	return b.data[b.processPos : b.processPos+q : b.processPos+q]
}

// Advance moves the process cursor forward by n samples, clamped to the
// number of unprocessed samples. It returns the distance moved.
func (b *Buffer) Advance(n int) int {
	n = min(max(n, 0), b.unprocessed)
	b.processPos = b.wrap(b.processPos + n)
	b.unprocessed -= n
	b.processed += n
	return n
}

// Read copies up to len(dst) processed samples into dst, in at most two
// contiguous copies around the wrap point, and returns the count copied.
func (b *Buffer) Read(dst []float32) int {
	n := min(len(dst), b.processed)
	if n == 0 {
		return 0
	}

	first := min(n, b.capacity-b.readPos)
	copy(dst[:first], b.data[b.readPos:b.readPos+first])
	if first < n {
		copy(dst[first:n], b.data[:n-first])
	}

	b.readPos = b.wrap(b.readPos + n)
	b.processed -= n
	return n
}

// Discard drops up to n of the oldest processed samples without copying
// them and returns the count dropped.
func (b *Buffer) Discard(n int) int {
	n = min(max(n, 0), b.processed)
	b.readPos = b.wrap(b.readPos + n)
	b.processed -= n
	return n
}

func (b *Buffer) wrap(pos int) int {
	if pos >= b.capacity {
		pos -= b.capacity
	}
	return pos
}
