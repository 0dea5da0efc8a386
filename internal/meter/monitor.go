package meter

import (
	"context"
	"time"
)

// DefaultRefreshRate is how often a Monitor samples levels, in Hz.
const DefaultRefreshRate = 30

// LevelSource is anything that exposes a meter snapshot.
type LevelSource interface {
	Levels() Levels
}

// Monitor polls a LevelSource at a fixed rate off the audio thread and
// hands each snapshot to a display callback.
type Monitor struct {
	source   LevelSource
	interval time.Duration
	display  func(Levels)
}

// NewMonitor creates a monitor refreshing refreshHz times per second.
// A non-positive rate selects DefaultRefreshRate.
func NewMonitor(source LevelSource, refreshHz int, display func(Levels)) *Monitor {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshRate
	}
	return &Monitor{
		source:   source,
		interval: time.Second / time.Duration(refreshHz),
		display:  display,
	}
}

// Interval returns the time between refreshes.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run refreshes the display until ctx is cancelled. It always returns
// ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.display(m.source.Levels())
		}
	}
}
