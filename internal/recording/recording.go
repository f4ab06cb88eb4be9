// SPDX-License-Identifier: MIT
/*
Package recording writes a sample stream to a 16-bit PCM WAV file.

The Recorder is a drop-in output for the peripheral engines: the DAC side
of an acquisition stream or the PWM side of a generation stream can be
captured and inspected with the analyze command.
*/
package recording

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth of every recording.
const BitDepth = 16

// ErrRecording is returned by Start while a file is open.
var ErrRecording = errors.New("already recording")

// Recorder encodes interleaved int16 blocks into a WAV file.
type Recorder struct {
	sampleRate int
	channels   int

	isRecording atomic.Bool

	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
	written    uint64
	err        error
}

// New returns an idle Recorder. frames sizes the conversion buffer; larger
// blocks grow it once.
func New(sampleRate, channels, frames int) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		channels:   channels,
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, frames*channels),
			SourceBitDepth: BitDepth,
		},
	}
}

// Start creates filename and begins recording.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return ErrRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, BitDepth, r.channels, 1)
	r.written = 0
	r.err = nil

	r.isRecording.Store(true)
	return nil
}

// WriteSamples encodes one interleaved block. It is a no-op while idle.
// The first encoder error stops recording and is returned by Stop too.
func (r *Recorder) WriteSamples(samples []int16) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		r.sampleBuf.Data[i] = int(s)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.err = fmt.Errorf("failed to write recording: %w", err)
		r.isRecording.Store(false)
		return r.err
	}
	r.written += uint64(len(samples))
	return nil
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool {
	return r.isRecording.Load()
}

// Written returns the number of samples written to the current file.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Stop finalises the WAV header and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isRecording.Store(false)

	err := r.err
	if r.wavEncoder != nil {
		if cerr := r.wavEncoder.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		if cerr := r.outputFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.outputFile = nil
	}
	return err
}

// Close stops any recording in progress.
func (r *Recorder) Close() error {
	return r.Stop()
}
