// SPDX-License-Identifier: MIT
package periph

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ToneSource is a phase-continuous sum of harmonics of one fundamental.
// Amplitudes are fractions of full scale, index 0 being the fundamental.
type ToneSource struct {
	rate  float64
	freq  float64
	amps  []float64
	n     uint64
	scale float64
}

// NewToneSource returns a tone generator. With no amplitudes it produces a
// 440 Hz-style mix of fundamental, second and third harmonic at 0.5, 0.3
// and 0.2 of 90% full scale.
func NewToneSource(sampleRate, freq float64, amps ...float64) *ToneSource {
	if len(amps) == 0 {
		amps = []float64{0.5, 0.3, 0.2}
	}
	return &ToneSource{
		rate:  sampleRate,
		freq:  freq,
		amps:  amps,
		scale: math.MaxInt16 * 0.9,
	}
}

func (s *ToneSource) Read(buf []int16) error {
	for i := range buf {
		tm := float64(s.n) / s.rate
		var v float64
		for h, a := range s.amps {
			v += a * math.Sin(2*math.Pi*float64(h+1)*s.freq*tm)
		}
		buf[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v*s.scale)))
		s.n++
	}
	return nil
}

// WAVSource reads the first channel of a PCM WAV file and scales it to 16
// bits. With loop set it rewinds at the end instead of returning io.EOF.
type WAVSource struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	shift   int
	chans   int
	loop    bool
}

// OpenWAVSource opens path for reading. frames sizes the decode buffer.
func OpenWAVSource(path string, frames int, loop bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav source: %w", err)
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	d.ReadInfo()
	if d.BitDepth < 8 || d.BitDepth > 32 {
		f.Close()
		return nil, fmt.Errorf("unsupported bit depth %d", d.BitDepth)
	}

	chans := int(d.NumChans)
	return &WAVSource{
		file:    f,
		decoder: d,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: chans, SampleRate: int(d.SampleRate)},
			Data:   make([]int, frames*chans),
		},
		shift: int(d.BitDepth) - 16,
		chans: chans,
		loop:  loop,
	}, nil
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() int {
	return int(s.decoder.SampleRate)
}

func (s *WAVSource) Read(buf []int16) error {
	filled := 0
	for filled < len(buf) {
		want := (len(buf) - filled) * s.chans
		s.buf.Data = s.buf.Data[:min(want, cap(s.buf.Data))]
		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil {
			return fmt.Errorf("failed to decode wav: %w", err)
		}
		if n == 0 {
			if !s.loop {
				clear(buf[filled:])
				return io.EOF
			}
			if err := s.decoder.Rewind(); err != nil {
				return fmt.Errorf("failed to rewind wav: %w", err)
			}
			continue
		}
		for i := 0; i+s.chans <= n && filled < len(buf); i += s.chans {
			buf[filled] = s.scale(s.buf.Data[i])
			filled++
		}
	}
	return nil
}

func (s *WAVSource) scale(v int) int16 {
	switch {
	case s.shift > 0:
		v >>= s.shift
	case s.shift < 0:
		// 8-bit WAV is unsigned.
		v = (v - 128) << -s.shift
	}
	return int16(v)
}

// Close releases the underlying file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
