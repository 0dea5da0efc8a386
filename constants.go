package reblock

// Channel layout.
const (
	numChannels = 2 // left and right
	left        = 0
	right       = 1
)

// Sample rate limits accepted by Prepare.
const (
	minSampleRate = 1.0
	maxSampleRate = 1536000.0
)
