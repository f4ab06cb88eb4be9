// SPDX-License-Identifier: MIT
/*
Package engine wires one variant end to end: the buffer exchange, the
processor, the peripherals that raise interrupt lines, the dispatcher
that services them and the diagnostic hub that reports on them.

The program flow has three phases:
  - New allocates everything (cold path).
  - Run brings the board up and services interrupts until the stream
    ends, a fatal fault halts the dispatcher, or ctx is cancelled.
  - Close stops devices and flushes the recording (cold path).
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"streamcore/internal/board"
	"streamcore/internal/config"
	"streamcore/internal/diag"
	"streamcore/internal/dispatch"
	"streamcore/internal/log"
	"streamcore/internal/periph"
	"streamcore/internal/recording"
	"streamcore/internal/stream"
)

// Engine is one running variant.
type Engine struct {
	cfg *config.Config

	x      *stream.Exchange
	proc   dispatch.Processor
	mode   *dispatch.ModeSelector
	disp   *dispatch.Dispatcher
	hub    *diag.Hub
	ticker *periph.Ticker

	sim  *periph.SimStream
	host *periph.HostStream

	script   *periph.ScriptButton
	gpio     *periph.GPIOButton
	recorder *recording.Recorder
	udp      *diag.UDPPublisher

	periphs []board.Peripheral
	closers []io.Closer
}

// Options adjust New for the caller's environment.
type Options struct {
	// Quiet drops the console channel, e.g. while a TUI owns the terminal.
	Quiet bool
	// Channels are added to the diagnostic hub.
	Channels []diag.Channel
}

// New builds the engine for cfg. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (_ *Engine, err error) {
	e := &Engine{cfg: cfg}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if e.proc, err = dispatch.NewProcessor(cfg.Variant); err != nil {
		return nil, err
	}
	if e.mode, err = dispatch.NewModeSelector(cfg.InitialMode()); err != nil {
		return nil, err
	}
	policy, err := cfg.FaultPolicy()
	if err != nil {
		return nil, err
	}

	n := cfg.BufferLen()
	e.x = stream.New(n)

	if err := e.setupRecorder(n); err != nil {
		return nil, err
	}
	hold, err := e.setupStream(n)
	if err != nil {
		return nil, err
	}
	button, err := e.setupButton()
	if err != nil {
		return nil, err
	}

	e.hub = diag.NewHub(diag.HubConfig{
		PerSecond: cfg.Diagnostics.RatePerSecond,
		Burst:     cfg.Diagnostics.Burst,
		Interval:  cfg.Diagnostics.StatsInterval,
	}, e.Snapshot, opts.Channels...)
	e.closers = append(e.closers, e.hub)
	if err := e.setupDiagnostics(opts.Quiet); err != nil {
		return nil, err
	}

	var faults dispatch.FaultSource
	if e.host != nil {
		faults = e.host
	} else {
		faults = e.sim
	}
	dcfg := dispatch.Config{
		Stream:      e.x,
		Processor:   e.proc,
		Faults:      faults,
		Mode:        e.mode,
		Debounce:    cfg.Thresholds(),
		FaultPolicy: policy,
		Notifier:    e.hub,
	}
	if hold != nil {
		dcfg.Sink = hold
	}
	if button != nil {
		dcfg.Button = button
	}
	if e.disp, err = dispatch.New(dcfg); err != nil {
		return nil, err
	}

	if e.host != nil {
		e.host.Attach(e.disp)
		e.periphs = append(e.periphs, e.host)
	} else {
		e.sim.Attach(e.disp)
		e.periphs = append(e.periphs, e.sim)
	}
	e.ticker = periph.NewTicker(cfg.Control.TickRate, e.disp)
	e.periphs = append(e.periphs, e.ticker)

	log.Debugf("engine: %s variant, %d-sample buffers, %s", e.proc.Name(), n, e.mode.Load())
	return e, nil
}

func (e *Engine) setupRecorder(n int) error {
	rc := e.cfg.Recording
	if !rc.Enabled {
		return nil
	}
	channels := dispatch.FrameLen
	if e.proc.Direction() == dispatch.Output {
		channels = 1
	}
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}
	e.recorder = recording.New(int(e.cfg.Stream.SampleRate), channels, n)
	name := filepath.Join(rc.OutputDir,
		"recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
	if err := e.recorder.Start(name); err != nil {
		return err
	}
	e.closers = append(e.closers, e.recorder)
	log.Infof("engine: recording to %s", name)
	return nil
}

// setupStream picks the peripheral for the variant's direction. It
// returns the output sink for Input processors.
func (e *Engine) setupStream(n int) (*periph.HoldSink, error) {
	sc := e.cfg.Stream
	dir := e.proc.Direction()

	var out periph.SampleSink
	if e.recorder != nil {
		out = e.recorder
	}

	if sc.Source == config.SourcePortAudio {
		var hold *periph.HoldSink
		if dir == dispatch.Input {
			hold = periph.NewHoldSink(n, out)
		}
		host, err := periph.NewHostStream(periph.HostConfig{
			InputDevice:  sc.InputDevice,
			OutputDevice: sc.OutputDevice,
			SampleRate:   sc.SampleRate,
			LowLatency:   sc.LowLatency,
		}, dir, e.x, hold)
		if err != nil {
			return nil, err
		}
		e.host = host
		return hold, nil
	}

	simCfg := periph.SimConfig{
		Direction:  dir,
		Frames:     sc.Frames,
		FaultEvery: sc.FaultEvery,
	}
	if sc.Paced {
		simCfg.Period = time.Duration(float64(time.Second) * float64(n) / sc.SampleRate)
	}

	if dir == dispatch.Output {
		sim, err := periph.NewSimStream(simCfg, e.x, nil, out)
		if err != nil {
			return nil, err
		}
		e.sim = sim
		return nil, nil
	}

	src, err := e.openSource(n)
	if err != nil {
		return nil, err
	}
	sim, err := periph.NewSimStream(simCfg, e.x, src, nil)
	if err != nil {
		return nil, err
	}
	e.sim = sim
	return periph.NewHoldSink(n, out), nil
}

func (e *Engine) openSource(n int) (periph.Source, error) {
	sc := e.cfg.Stream
	if sc.Source != config.SourceWAV {
		return periph.NewToneSource(sc.SampleRate, sc.ToneFrequency), nil
	}
	src, err := periph.OpenWAVSource(sc.WAVPath, n, sc.Loop)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, src)
	if float64(src.SampleRate()) != sc.SampleRate {
		log.Warnf("engine: %s is %d Hz, stream runs at %.0f Hz", sc.WAVPath, src.SampleRate(), sc.SampleRate)
	}
	return src, nil
}

func (e *Engine) setupButton() (dispatch.Button, error) {
	ctl := e.cfg.Control
	switch ctl.Button {
	case config.ButtonScript:
		e.script = &periph.ScriptButton{}
		e.periphs = append(e.periphs, e.script)
		return e.script, nil
	case config.ButtonGPIO:
		b, err := periph.OpenGPIOButton(ctl.GPIOChip, ctl.GPIOLine)
		if err != nil {
			return nil, err
		}
		e.gpio = b
		e.closers = append(e.closers, b)
		e.periphs = append(e.periphs, b)
		return b, nil
	default:
		return nil, nil
	}
}

func (e *Engine) setupDiagnostics(quiet bool) error {
	d := e.cfg.Diagnostics
	if d.Console && !quiet {
		e.hub.Add(diag.NewConsole())
	}
	if d.WebSocketAddr != "" {
		ws, err := diag.NewWebSocketChannel(d.WebSocketAddr)
		if err != nil {
			return err
		}
		e.hub.Add(ws)
		log.Infof("engine: diagnostics on ws://%s/ws", ws.Addr())
	}
	if d.UDPEnabled {
		sender, err := diag.NewUDPSender(d.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := diag.NewUDPPublisher(d.UDPSendInterval, sender, e.Snapshot)
		if err != nil {
			sender.Close()
			return err
		}
		e.udp = pub
		e.closers = append(e.closers, pub)
	}
	return nil
}

// Snapshot reports the current mode and counters.
func (e *Engine) Snapshot() diag.Snapshot {
	s := diag.Snapshot{Variant: e.proc.Name()}
	if e.gpio != nil {
		s.ButtonErrors = e.gpio.Errors()
	}
	if e.recorder != nil {
		s.Recorded = e.recorder.Written()
	}
	if e.disp == nil {
		s.Mode = diag.NamesOf(e.mode.Load())
		return s
	}
	s.Mode = diag.NamesOf(e.disp.Mode())
	s.Stats = e.disp.Stats()
	s.Halted = e.disp.Halted()
	s.Pending = e.x.Pending()
	return s
}

// Button returns the scripted button, nil unless configured.
func (e *Engine) Button() *periph.ScriptButton { return e.script }

// Hub returns the diagnostic hub.
func (e *Engine) Hub() *diag.Hub { return e.hub }

// Processor returns the variant's processor.
func (e *Engine) Processor() dispatch.Processor { return e.proc }

// Run brings the board up and services interrupts. It returns nil when
// the stream ends or ctx is cancelled, and the handler error when a fatal
// fault halts the dispatcher.
func (e *Engine) Run(ctx context.Context) error {
	if e.host != nil {
		if err := e.host.Start(); err != nil {
			return err
		}
	}

	report, err := board.Bringup(ctx, board.Config{
		Clock:        e.cfg.Board.Clock,
		TickRate:     e.cfg.Control.TickRate,
		ReadyTimeout: e.cfg.Board.ReadyTimeout,
	}, e.hub, e.periphs...)
	if err != nil {
		return err
	}
	log.Debugf("engine: HCLK %d Hz, PCLK1 %d Hz, PCLK2 %d Hz, tick %s",
		report.HCLK, report.PCLK1, report.PCLK2, report.TickPeriod)

	if e.udp != nil {
		e.udp.Start()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return ignoreCancel(e.hub.Run(gctx))
	})
	g.Go(func() error {
		// A halt is reported by the stream that caused it.
		err := ignoreCancel(e.ticker.Run(gctx))
		if errors.Is(err, dispatch.ErrHalted) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		if e.host != nil {
			select {
			case <-e.host.Done():
				return e.host.Err()
			case <-gctx.Done():
				return nil
			}
		}
		return ignoreCancel(e.sim.Run(gctx))
	})

	started := time.Now()
	err = g.Wait()
	log.Infof("engine: stopped after %s, %s", log.Since(started), diag.StatsLine(e.Snapshot()))
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the device stream and releases every resource. The
// recording is finalised here.
func (e *Engine) Close() error {
	var errs []error
	if e.host != nil {
		errs = append(errs, e.host.Stop())
	}
	if e.recorder != nil {
		log.Infof("engine: recorded %d samples", e.recorder.Written())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}
