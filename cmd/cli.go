// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"streamcore/internal/analysis"
	"streamcore/internal/config"
	"streamcore/internal/filter"
	"streamcore/internal/periph"
	"streamcore/pkg/build"
)

// RunFunc starts the configured variant.
type RunFunc func(ctx context.Context, cfg *config.Config) error

// Options are the flag values that override the configuration file.
type Options struct {
	ConfigPath  string
	Variant     string
	Source      string
	WAVPath     string
	Loop        bool
	Frames      uint64
	SampleRate  float64
	InputDevice int
	OutputDev   int
	LowLatency  bool
	FaultPolicy string
	Button      string
	TUI         bool
	Record      bool
	OutputDir   string
	WSAddr      string
	Verbose     bool
}

// Execute parses os.Args and runs the selected command.
func Execute(ctx context.Context, run RunFunc) error {
	rootCmd := NewRootCommand(run)
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. The root command loads the
// configuration, applies flag overrides and hands it to run.
func NewRootCommand(run RunFunc) *cobra.Command {
	buildInfo := build.Get()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Interrupt-driven double-buffered signal pipeline",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), options, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	addRunFlags(rootCmd.Flags(), options)

	rootCmd.AddCommand(
		newListCommand(),
		newAnalyzeCommand(),
		newBanksCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func addRunFlags(fs *pflag.FlagSet, o *Options) {
	fs.StringVarP(&o.ConfigPath, "config", "f", "",
		"Configuration file. Defaults to ./config.yaml when present")

	// Pipeline
	fs.StringVarP(&o.Variant, "variant", "V", config.DefaultVariant,
		"Variant to run: bringup, acquire or generate")
	fs.StringVar(&o.FaultPolicy, "fault-policy", config.DefaultFaultPolicy,
		"Transfer fault handling: rearm or halt")
	fs.StringVar(&o.Button, "button", config.DefaultButton,
		"Mode button: none, script or gpio")

	// Stream
	fs.StringVar(&o.Source, "source", config.DefaultSource,
		"Input source: tone, wav or portaudio")
	fs.StringVarP(&o.WAVPath, "wav", "w", "",
		"WAV file for the wav source")
	fs.BoolVar(&o.Loop, "loop", false,
		"Loop the WAV file")
	fs.Uint64VarP(&o.Frames, "frames", "n", 0,
		"Stop after this many simulated transfers (0 runs until interrupted)")
	fs.Float64VarP(&o.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	fs.IntVarP(&o.InputDevice, "input-device", "i", config.DefaultDevice,
		"Input device ID for the portaudio source. Use 'list' to see available devices.")
	fs.IntVarP(&o.OutputDev, "output-device", "d", config.DefaultDevice,
		"Output device ID for the portaudio source")
	fs.BoolVarP(&o.LowLatency, "low-latency", "l", false,
		"Use low latency mode for host devices")

	// Recording
	fs.BoolVarP(&o.Record, "record", "r", false,
		"Record the output stream to WAV")
	fs.StringVarP(&o.OutputDir, "output", "o", "",
		"Recording directory")

	// Diagnostics and UI
	fs.BoolVarP(&o.TUI, "tui", "t", false,
		"Show the live monitor")
	fs.StringVar(&o.WSAddr, "ws", "",
		"Serve diagnostics over WebSocket on this address")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false,
		"Show verbose output")
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(fs *pflag.FlagSet, o *Options, cfg *config.Config) error {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("variant", func() { cfg.Variant = o.Variant })
	set("fault-policy", func() { cfg.Control.FaultPolicy = o.FaultPolicy })
	set("button", func() { cfg.Control.Button = o.Button })
	set("source", func() { cfg.Stream.Source = o.Source })
	set("wav", func() {
		cfg.Stream.WAVPath = o.WAVPath
		if !fs.Changed("source") {
			cfg.Stream.Source = config.SourceWAV
		}
	})
	set("loop", func() { cfg.Stream.Loop = o.Loop })
	set("frames", func() { cfg.Stream.Frames = o.Frames })
	set("sample-rate", func() { cfg.Stream.SampleRate = o.SampleRate })
	set("input-device", func() { cfg.Stream.InputDevice = o.InputDevice })
	set("output-device", func() { cfg.Stream.OutputDevice = o.OutputDev })
	set("low-latency", func() { cfg.Stream.LowLatency = o.LowLatency })
	set("record", func() { cfg.Recording.Enabled = o.Record })
	set("output", func() { cfg.Recording.OutputDir = o.OutputDir })
	set("tui", func() { cfg.TUI = o.TUI })
	set("ws", func() { cfg.Diagnostics.WebSocketAddr = o.WSAddr })
	set("verbose", func() { cfg.Debug = o.Verbose })

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := periph.Initialize(); err != nil {
				return err
			}
			defer periph.Terminate()
			return periph.ListDevices(cmd.OutOrStdout())
		},
	}
}

func newAnalyzeCommand() *cobra.Command {
	var (
		channel     int
		windowName  string
		peaks       int
		fundamental float64
		harmonics   int
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Report the spectral peaks of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := analysis.ParseWindowFunc(windowName)
			if err != nil {
				return err
			}
			rec, err := analysis.ReadWAV(args[0], channel)
			if err != nil {
				return err
			}
			s, err := analysis.Analyze(rec.Samples, rec.SampleRate, w)
			if err != nil {
				return err
			}
			printSpectrum(cmd.OutOrStdout(), args[0], rec, s, w, peaks)
			if fundamental > 0 {
				out := cmd.OutOrStdout()
				for h, level := range s.Harmonics(fundamental, harmonics) {
					fmt.Fprintf(out, "  H%d %9.1f Hz  %.4f\n", h+1, fundamental*float64(h+1), level)
				}
			}
			return nil
		},
	}

	fs := analyzeCmd.Flags()
	fs.IntVarP(&channel, "channel", "c", 0, "Channel to analyse")
	fs.StringVarP(&windowName, "window", "w", "hann", "Window function, or none")
	fs.IntVarP(&peaks, "peaks", "k", 5, "Number of peaks to list")
	fs.Float64VarP(&fundamental, "fundamental", "F", 0, "Report harmonic levels of this frequency")
	fs.IntVar(&harmonics, "harmonics", 5, "Number of harmonics to report")
	return analyzeCmd
}

func printSpectrum(w io.Writer, name string, rec *analysis.Recording, s *analysis.Spectrum, win analysis.WindowFunc, k int) {
	fmt.Fprintf(w, "%s: %d channel(s), %d-bit, %.0f Hz, %d samples\n",
		name, rec.Channels, rec.BitDepth, rec.SampleRate, len(rec.Samples))
	fmt.Fprintf(w, "FFT %d points, %s window, bin %.2f Hz\n", s.Size, win, s.BinFrequency(1))
	fmt.Fprintf(w, "Mean %.4f, RMS %.4f\n", s.Mean, s.RMS)
	for i, p := range s.Peaks(k) {
		fmt.Fprintf(w, "  #%d %9.1f Hz  %.4f\n", i+1, p.Frequency, p.Amplitude)
	}
}

func newBanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List the FIR and IIR filter banks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "FIR banks (%d taps, %d channels)\n", filter.Taps, filter.Channels)
			for i, b := range filter.FIRBanks {
				fmt.Fprintf(out, "  [%d] %-16s shift %d\n", i, b.Name, b.Shift)
			}
			fmt.Fprintln(out, "IIR banks (biquad)")
			for i, b := range filter.IIRBanks {
				fmt.Fprintf(out, "  [%d] %-16s %v shift %d\n", i, b.Name, b.Coeffs, b.Shift)
			}
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, line := range build.Get().Banner() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
		},
	}
}
