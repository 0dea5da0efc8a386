//go:build !headless

package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often Play checks whether the device has drained.
const pollInterval = 50 * time.Millisecond

// Player owns the audio device. Only one Player may exist per process.
type Player struct {
	ctx        *oto.Context
	sampleRate int
}

// NewPlayer opens the default output device at sampleRate.
func NewPlayer(sampleRate int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: numChannels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	return &Player{ctx: ctx, sampleRate: sampleRate}, nil
}

// SampleRate returns the device rate.
func (p *Player) SampleRate() int {
	return p.sampleRate
}

// Play plays s until it ends or ctx is cancelled.
func (p *Player) Play(ctx context.Context, s *Stream) error {
	pl := p.ctx.NewPlayer(s)
	defer pl.Close()

	pl.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pl.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !pl.IsPlaying() {
				return pl.Err()
			}
		}
	}
}
