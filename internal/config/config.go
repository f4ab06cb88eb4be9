// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the pipeline.
const (
	DefaultVariant        = "acquire"
	DefaultSampleRate     = 48000
	DefaultAcquireBuffer  = 16  // one FIR window per buffer
	DefaultGenerateBuffer = 256 // one table entry per buffer
	DefaultTickRate       = 1000
	DefaultShortTicks     = 50
	DefaultLongTicks      = 1000
	DefaultFaultPolicy    = "rearm"
	DefaultSource         = SourceTone
	DefaultToneFrequency  = 3000 // fundamental bank centre at 48 kHz
	DefaultButton         = ButtonNone
	DefaultReadyTimeout   = 2 * time.Second
	DefaultStatsInterval  = time.Second
	DefaultUDPInterval    = 100 * time.Millisecond

	// DefaultDevice selects the host's default audio device.
	DefaultDevice = -1

	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

// Input sources for acquisition.
const (
	SourceTone      = "tone"
	SourceWAV       = "wav"
	SourcePortAudio = "portaudio"
)

// Button inputs for the tick handler.
const (
	ButtonNone   = "none"
	ButtonScript = "script"
	ButtonGPIO   = "gpio"
)
