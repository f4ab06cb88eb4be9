// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamcore/internal/dispatch"
	"streamcore/internal/modulator"
)

func sine(n int, fs, f, a, dc float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = dc + a*math.Sin(2*math.Pi*f*float64(i)/fs)
	}
	return x
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n, expected int
	}{
		{-10, 1},
		{0, 1},
		{8, 8},
		{10, 16},
		{1000, 1024},
		{3, 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, nextPowerOfTwo(tt.n))
		})
	}
}

func TestParseWindowFunc(t *testing.T) {
	w, err := ParseWindowFunc("Blackman")
	require.NoError(t, err)
	assert.Equal(t, Blackman, w)

	w, err = ParseWindowFunc("triangle")
	assert.Error(t, err)
	assert.Equal(t, Hann, w)

	for _, name := range []string{"hann", "hamming", "nuttall", "rectangular"} {
		w, err := ParseWindowFunc(name)
		require.NoError(t, err)
		assert.Equal(t, name, w.String())
	}
}

func TestSinePeak(t *testing.T) {
	const fs = 8000.0
	s, err := Analyze(sine(4096, fs, 1000, 0.5, 0.25), fs, Hann)
	require.NoError(t, err)

	assert.Equal(t, 4096, s.Size)
	assert.InDelta(t, 0.25, s.Mean, 1e-9)
	assert.InDelta(t, 0.5/math.Sqrt2, s.RMS, 1e-3)

	p := s.Peak()
	assert.InDelta(t, 1000, p.Frequency, fs/4096)
	assert.InDelta(t, 0.5, p.Amplitude, 0.01)
}

func TestPaddingAndBins(t *testing.T) {
	s, err := Analyze(sine(3000, 6000, 750, 1, 0), 6000, Rectangular)
	require.NoError(t, err)
	assert.Equal(t, 4096, s.Size)
	assert.Len(t, s.Amplitude, 2049)
	assert.Equal(t, 0.0, s.BinFrequency(-1))
	assert.Equal(t, 3000.0, s.BinFrequency(2048))
	assert.Equal(t, 512, s.Bin(750))
	assert.Greater(t, s.LevelAt(750), 0.6)
}

func TestPeaksOrdered(t *testing.T) {
	const fs = 8000.0
	x := sine(8192, fs, 500, 1, 0)
	for i, v := range sine(8192, fs, 1500, 0.3, 0) {
		x[i] += v
	}
	s, err := Analyze(x, fs, Blackman)
	require.NoError(t, err)

	ps := s.Peaks(2)
	require.Len(t, ps, 2)
	assert.InDelta(t, 500, ps[0].Frequency, 2)
	assert.InDelta(t, 1500, ps[1].Frequency, 2)

	h := s.Harmonics(500, 3)
	assert.InDelta(t, 1, h[0], 0.05)
	assert.Less(t, h[1], 0.01)
	assert.InDelta(t, 0.3, h[2], 0.03)
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := Analyze([]float64{1}, 8000, Hann)
	assert.ErrorIs(t, err, ErrTooShort)
	_, err = Analyze([]float64{1, 2}, 0, Hann)
	assert.Error(t, err)
}

// The generation stream holds each of 36 table entries for one buffer, so
// its fundamental sits at fs/(36*N).
func TestGenerationFundamental(t *testing.T) {
	const (
		n       = 256
		periods = 4
		fs      = 36 * n // one period per second
	)
	g := dispatch.NewGeneration(nil)
	out := make([]int16, 0, periods*modulator.TableLen*n)
	buf := make([]int16, n)
	for range periods * modulator.TableLen {
		g.Process(buf, nil, dispatch.Mode{})
		out = append(out, buf...)
	}

	s, err := AnalyzeInt16(out, fs, Hann)
	require.NoError(t, err)

	p := s.Peak()
	assert.InDelta(t, 1.0, p.Frequency, 2*fs/float64(s.Size))
	// Table swing is 0.96 of half scale on an 8-bit duty range.
	assert.InDelta(t, 123, p.Amplitude, 8)
	assert.InDelta(t, 128, s.Mean, 2)
}

func TestReadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	const fs = 8000
	data := make([]int, 2*2048)
	for i := range 2048 {
		v := int(16000 * math.Sin(2*math.Pi*440*float64(i)/fs))
		data[2*i] = v
		data[2*i+1] = -v
	}
	enc := wav.NewEncoder(f, fs, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: fs},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	rec, err := ReadWAV(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Channels)
	assert.Equal(t, 16, rec.BitDepth)
	assert.Len(t, rec.Samples, 2048)

	s, err := Analyze(rec.Samples, rec.SampleRate, Hann)
	require.NoError(t, err)
	assert.InDelta(t, 440, s.Peak().Frequency, 4)
	assert.InDelta(t, 16000.0/32768, s.Peak().Amplitude, 0.08)

	_, err = ReadWAV(path, 2)
	assert.Error(t, err)
}
