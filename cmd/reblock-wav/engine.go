package main

import (
	"fmt"
	"log"

	"github.com/tphakala/go-audio-reblock/internal/config"
	"github.com/tphakala/go-audio-reblock/internal/engine"
	"github.com/tphakala/go-audio-reblock/internal/filter"
)

// buildRouter assembles the demo engine: each rack convolves its mono input
// with the impulse response (if any) and rack A applies the output gain to
// both channels.
func buildRouter(cfg config.EngineConfig, sampleRate float64) (*engine.Router, error) {
	mode, err := engine.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	ir, err := impulseFor(cfg, sampleRate)
	if err != nil {
		return nil, err
	}

	a, b := &engine.Rack{}, &engine.Rack{}
	if ir != nil {
		for _, rack := range []*engine.Rack{a, b} {
			conv, err := engine.NewConvolver(ir)
			if err != nil {
				return nil, err
			}
			rack.Mono = append(rack.Mono, conv)
		}
	}
	if cfg.GainDB != 0 {
		gain := engine.NewGain(cfg.GainDB)
		a.Stereo = append(a.Stereo, engine.Pair{Left: gain, Right: gain})
	}

	router := engine.NewRouter(a, b)
	router.SetMode(mode)
	router.SetMute(cfg.MuteA, cfg.MuteB)
	return router, nil
}

// impulseFor returns the impulse response the config asks for, or nil.
func impulseFor(cfg config.EngineConfig, sampleRate float64) ([]float32, error) {
	switch {
	case cfg.Impulse != "":
		ir, rate, err := loadImpulse(cfg.Impulse)
		if err != nil {
			return nil, err
		}
		if float64(rate) != sampleRate {
			log.Printf("Warning: impulse response is %d Hz, processing at %g Hz", rate, sampleRate)
		}
		return ir, nil

	case cfg.LowpassHz > 0:
		ir, err := filter.Lowpass{SampleRate: sampleRate, CutoffHz: cfg.LowpassHz}.Design()
		if err != nil {
			return nil, fmt.Errorf("lowpass: %w", err)
		}
		return ir, nil
	}
	return nil, nil
}
