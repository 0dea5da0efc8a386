package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	monoChannels   = 1
	stereoChannels = 2

	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	wavFormatPCM = 1
)

// audioData is a decoded file as planar stereo. Mono files are read into
// both channels and written back as mono.
type audioData struct {
	left, right []float32
	sampleRate  int
	channels    int
	bitDepth    int
}

func (a *audioData) frames() int {
	return len(a.left)
}

// getMaxValue returns the maximum sample value for the given bit depth.
func getMaxValue(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// readWAV decodes a 16, 24 or 32-bit PCM WAV file with one or two channels.
func readWAV(path string) (*audioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV encoding %d in %s (only PCM)", decoder.WavAudioFormat, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels != monoChannels && channels != stereoChannels {
		return nil, fmt.Errorf("unsupported channel count %d in %s (mono or stereo only)", channels, path)
	}
	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case bitsPerSample16, bitsPerSample24, bitsPerSample32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d in %s", bitDepth, path)
	}

	frames := len(buf.Data) / channels
	data := &audioData{
		left:       make([]float32, frames),
		right:      make([]float32, frames),
		sampleRate: buf.Format.SampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}
	deinterleaveInto(buf.Data, data.left, data.right, channels, 1/getMaxValue(bitDepth))
	return data, nil
}

// writeWAV encodes data with its original channel count and bit depth.
func writeWAV(path string, data *audioData) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	enc := wav.NewEncoder(f, data.sampleRate, data.bitDepth, data.channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: data.channels, SampleRate: data.sampleRate},
		Data:           make([]int, data.frames()*data.channels),
		SourceBitDepth: data.bitDepth,
	}
	interleaveInto(data.left, data.right, buf.Data, data.channels, getMaxValue(data.bitDepth))

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// loadImpulse reads an impulse response WAV. Stereo files are mixed down.
func loadImpulse(path string) ([]float32, int, error) {
	data, err := readWAV(path)
	if err != nil {
		return nil, 0, fmt.Errorf("impulse response: %w", err)
	}
	ir := data.left
	if data.channels == stereoChannels {
		for i := range ir {
			ir[i] = (ir[i] + data.right[i]) / 2
		}
	}
	return ir, data.sampleRate, nil
}

// deinterleaveInto converts interleaved int samples into planar stereo.
// Mono input is copied to both channels.
func deinterleaveInto(data []int, left, right []float32, numChannels int, invMaxVal float64) {
	if numChannels == monoChannels {
		for i, s := range data[:len(left)] {
			left[i] = float32(float64(s) * invMaxVal)
		}
		copy(right, left)
		return
	}

	for i := range left {
		idx := i * stereoChannels
		left[i] = float32(float64(data[idx]) * invMaxVal)
		right[i] = float32(float64(data[idx+1]) * invMaxVal)
	}
}

// interleaveInto converts planar stereo into interleaved int samples,
// clamping to [-1, 1]. Mono output takes the left channel.
func interleaveInto(left, right []float32, dst []int, numChannels int, maxVal float64) {
	if numChannels == monoChannels {
		for i, s := range left {
			dst[i] = toInt(s, maxVal)
		}
		return
	}

	for i := range left {
		idx := i * stereoChannels
		dst[idx] = toInt(left[i], maxVal)
		dst[idx+1] = toInt(right[i], maxVal)
	}
}

func toInt(s float32, maxVal float64) int {
	return int(min(max(float64(s), -1), 1) * maxVal)
}
