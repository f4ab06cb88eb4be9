// SPDX-License-Identifier: MIT
package periph

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the host's default device.
const DefaultDevice = -1

// Initialize sets up the PortAudio subsystem.
// This must be called before any host stream is opened and paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice retrieves the input device for id, or the default input for
// DefaultDevice.
func InputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDevice {
		return portaudio.DefaultInputDevice()
	}
	return deviceByID(id, func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

// OutputDevice retrieves the output device for id, or the default output
// for DefaultDevice.
func OutputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDevice {
		return portaudio.DefaultOutputDevice()
	}
	return deviceByID(id, func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func deviceByID(id int, usable func(*portaudio.DeviceInfo) bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	if !usable(devices[id]) {
		return nil, fmt.Errorf("device %d (%s) has no channels in that direction", id, devices[id].Name)
	}
	return devices[id], nil
}

// DeviceKind describes which directions a device supports.
func DeviceKind(in, out int) string {
	switch {
	case in > 0 && out > 0:
		return "Input/Output"
	case in > 0:
		return "Input"
	case out > 0:
		return "Output"
	default:
		return "None"
	}
}

// ListDevices prints every host audio device with its channel counts,
// default sample rate and latency range.
func ListDevices(w io.Writer) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for i, device := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", i, device.Name,
			DeviceKind(device.MaxInputChannels, device.MaxOutputChannels))
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}

	return nil
}
