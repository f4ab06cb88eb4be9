// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Recording is one channel of a decoded WAV file scaled to [-1, 1).
type Recording struct {
	SampleRate float64
	Channels   int
	BitDepth   int
	Samples    []float64
}

// ReadWAV decodes channel ch of a PCM WAV file.
func ReadWAV(path string, ch int) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	chans := int(d.NumChans)
	if ch < 0 || ch >= chans {
		return nil, fmt.Errorf("channel %d out of range, file has %d", ch, chans)
	}

	full := float64(int64(1) << (d.BitDepth - 1))
	samples := make([]float64, 0, len(buf.Data)/chans)
	for i := ch; i < len(buf.Data); i += chans {
		samples = append(samples, float64(buf.Data[i])/full)
	}

	return &Recording{
		SampleRate: float64(d.SampleRate),
		Channels:   chans,
		BitDepth:   int(d.BitDepth),
		Samples:    samples,
	}, nil
}
