//go:build headless

package playback

import (
	"context"
	"errors"
)

// ErrNoAudio is returned by NewPlayer in headless builds.
var ErrNoAudio = errors.New("audio output not available in headless build")

// Player is unavailable in headless builds.
type Player struct{}

// NewPlayer always fails in headless builds.
func NewPlayer(int) (*Player, error) {
	return nil, ErrNoAudio
}

// SampleRate returns zero.
func (p *Player) SampleRate() int { return 0 }

// Play always fails in headless builds.
func (p *Player) Play(context.Context, *Stream) error {
	return ErrNoAudio
}
