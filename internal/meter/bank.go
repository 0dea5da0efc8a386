package meter

// Channel indexes the four meters of a Bank.
type Channel int

// Meter positions: before and after the engine, per side.
const (
	PreLeft Channel = iota
	PreRight
	PostLeft
	PostRight

	NumChannels = 4
)

var channelNames = [NumChannels]string{"pre-L", "pre-R", "post-L", "post-R"}

// String implements fmt.Stringer.
func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return "unknown"
	}
	return channelNames[c]
}

// Levels is a snapshot of all four meters in dB, indexed by Channel.
type Levels [NumChannels]float32

// Bank groups the pre- and post-processing meters for a stereo signal.
type Bank struct {
	meters [NumChannels]Meter
}

// NewBank creates a bank for the given sample rate.
func NewBank(sampleRate float64) *Bank {
	b := &Bank{}
	b.Reset(sampleRate)
	return b
}

// Reset re-initializes every meter for sampleRate.
func (b *Bank) Reset(sampleRate float64) {
	for i := range b.meters {
		b.meters[i].Reset(sampleRate)
	}
}

// PushPre meters the signal entering the engine.
func (b *Bank) PushPre(left, right []float32) {
	b.meters[PreLeft].Push(left)
	b.meters[PreRight].Push(right)
}

// PushPost meters the signal leaving the processor.
func (b *Bank) PushPost(left, right []float32) {
	b.meters[PostLeft].Push(left)
	b.meters[PostRight].Push(right)
}

// Meter returns the meter at c.
func (b *Bank) Meter(c Channel) *Meter {
	return &b.meters[c]
}

// Levels returns the published level of every meter. Safe for concurrent use.
func (b *Bank) Levels() Levels {
	var l Levels
	for i := range b.meters {
		l[i] = b.meters[i].Level()
	}
	return l
}
