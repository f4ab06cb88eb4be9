// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrTooShort is returned for inputs with fewer than two samples.
var ErrTooShort = errors.New("analysis: need at least two samples")

// Spectrum is the one-sided amplitude spectrum of a real signal. Amplitudes
// are in input units: a sine of amplitude A shows a peak near A.
type Spectrum struct {
	SampleRate float64
	Size       int       // FFT length, a power of two
	Mean       float64   // removed DC level
	RMS        float64   // of the signal after DC removal
	Amplitude  []float64 // Size/2+1 bins
}

// Peak is one spectral line.
type Peak struct {
	Bin       int
	Frequency float64
	Amplitude float64
}

// Analyze removes the mean, windows, zero-pads to the next power of two
// and transforms x.
func Analyze(x []float64, sampleRate float64, w WindowFunc) (*Spectrum, error) {
	if len(x) < 2 {
		return nil, ErrTooShort
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	n := nextPowerOfTwo(len(x))
	coeffs, gain := windowCoeffs(len(x), w)

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	input := make([]float64, n)
	var sq float64
	for i, v := range x {
		d := v - mean
		sq += d * d
		input[i] = d * coeffs[i]
	}

	fft := fourier.NewFFT(n)
	out := fft.Coefficients(nil, input)

	scale := 2 / (float64(len(x)) * gain)
	amp := make([]float64, len(out))
	for i, c := range out {
		amp[i] = cmplx.Abs(c) * scale
	}

	return &Spectrum{
		SampleRate: sampleRate,
		Size:       n,
		Mean:       mean,
		RMS:        math.Sqrt(sq / float64(len(x))),
		Amplitude:  amp,
	}, nil
}

// AnalyzeInt16 is Analyze over fixed-point samples.
func AnalyzeInt16(x []int16, sampleRate float64, w WindowFunc) (*Spectrum, error) {
	f := make([]float64, len(x))
	for i, v := range x {
		f[i] = float64(v)
	}
	return Analyze(f, sampleRate, w)
}

// BinFrequency returns the centre frequency of bin i.
func (s *Spectrum) BinFrequency(i int) float64 {
	if i < 0 || i >= len(s.Amplitude) {
		return 0
	}
	return float64(i) * s.SampleRate / float64(s.Size)
}

// Bin returns the bin nearest freq.
func (s *Spectrum) Bin(freq float64) int {
	i := int(math.Round(freq * float64(s.Size) / s.SampleRate))
	return max(0, min(i, len(s.Amplitude)-1))
}

// Peak returns the strongest non-DC bin.
func (s *Spectrum) Peak() Peak {
	best := 1
	for i := 2; i < len(s.Amplitude); i++ {
		if s.Amplitude[i] > s.Amplitude[best] {
			best = i
		}
	}
	return s.peakAt(best)
}

// Peaks returns up to k local maxima, strongest first.
func (s *Spectrum) Peaks(k int) []Peak {
	var ps []Peak
	for i := 1; i < len(s.Amplitude)-1; i++ {
		a := s.Amplitude[i]
		if a > s.Amplitude[i-1] && a >= s.Amplitude[i+1] {
			ps = append(ps, s.peakAt(i))
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Amplitude > ps[j].Amplitude })
	if len(ps) > k {
		ps = ps[:k]
	}
	return ps
}

// LevelAt returns the largest amplitude within one bin of freq, which
// absorbs the scalloping of a line that falls between bins.
func (s *Spectrum) LevelAt(freq float64) float64 {
	c := s.Bin(freq)
	level := 0.0
	for i := max(1, c-1); i <= min(c+1, len(s.Amplitude)-1); i++ {
		level = max(level, s.Amplitude[i])
	}
	return level
}

// Harmonics returns the level at each of the first n multiples of f0.
func (s *Spectrum) Harmonics(f0 float64, n int) []float64 {
	levels := make([]float64, n)
	for h := range n {
		levels[h] = s.LevelAt(f0 * float64(h+1))
	}
	return levels
}

func (s *Spectrum) peakAt(i int) Peak {
	return Peak{Bin: i, Frequency: s.BinFrequency(i), Amplitude: s.Amplitude[i]}
}
