package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/device"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/display"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/display/gstsink"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/health"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/input"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/kernel"
)

// Version information
const version = "v0.1.0"

type options struct {
	configPath string
	debug      bool
	logFormat  string
	period     time.Duration
	display    string
	output     string
	sink       string
	broker     string
	healthAddr string
	console    bool
	failEvery  int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML configuration (optional, hot-reloaded)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")
	flag.DurationVar(&opts.period, "period", 0, "Producer pacing period (overrides config)")
	flag.StringVar(&opts.display, "display", "", "Display mode: none, snapshot, window (overrides config)")
	flag.StringVar(&opts.output, "output", "", "Snapshot output directory (overrides config)")
	flag.StringVar(&opts.sink, "sink", "", "GStreamer sink for window mode (default autovideosink)")
	flag.StringVar(&opts.broker, "mqtt", "", "MQTT broker host:port (overrides config)")
	flag.StringVar(&opts.healthAddr, "health", "", "Health server address, e.g. :8080 (overrides config)")
	flag.BoolVar(&opts.console, "console", false, "Interactive console on stdin")
	flag.IntVar(&opts.failEvery, "fail-every", -1, "Inject a compute failure every N steps (overrides config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("handoffd %s\n", version)
		os.Exit(0)
	}

	if err := run(opts); err != nil {
		slog.Error("handoffd failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(format string, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", format)
	}
}

// loadConfig reads the file (or defaults) and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.period > 0 {
		cfg.Producer.PeriodUS = int(opts.period / time.Microsecond)
	}
	if opts.display != "" {
		cfg.Display.Mode = opts.display
	}
	if opts.output != "" {
		cfg.Display.OutputDir = opts.output
	}
	if opts.broker != "" {
		cfg.MQTT.Broker = opts.broker
	}
	if opts.healthAddr != "" {
		cfg.Health.Addr = opts.healthAddr
	}
	if opts.console {
		cfg.Console = true
	}
	if opts.failEvery >= 0 {
		cfg.Producer.FailEvery = opts.failEvery
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printBanner(cfg *config.Config) {
	frameBytes := float64(cfg.Resource.Width * cfg.Resource.Height * 4)

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║            Frame Handoff Daemon - Orion 2.0               ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Resource:      %dx%d RGBA (%s)\n", cfg.Resource.Width, cfg.Resource.Height, units.HumanSize(frameBytes))
	fmt.Printf("  Period:        %v\n", cfg.Period())
	fmt.Printf("  Wait Timeout:  %v\n", cfg.WaitTimeout())
	fmt.Printf("  Report Every:  %v\n", cfg.ReportInterval())
	fmt.Printf("  Display:       %s\n", cfg.Display.Mode)
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT Broker:   %s (%s)\n", cfg.MQTT.Broker, cfg.MQTT.Encoding)
	} else {
		fmt.Printf("  MQTT Broker:   (disabled)\n")
	}
	if cfg.Health.Addr != "" {
		fmt.Printf("  Health:        %s\n", cfg.Health.Addr)
	}
	fmt.Printf("\n")
}

func run(opts options) error {
	logger, err := newLogger(opts.logFormat, opts.debug)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	framehandoff.SetLogger(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Device and kernel
	dev := device.NewMemory(device.Options{
		Width:          cfg.Resource.Width,
		Height:         cfg.Resource.Height,
		AcquireLatency: cfg.AcquireLatency(),
		ReleaseLatency: cfg.ReleaseLatency(),
	})

	sweep := kernel.NewSweep(kernel.SweepOptions{})
	defer sweep.Close()
	var kern internal.Kernel = sweep
	if cfg.Producer.FailEvery > 0 {
		kern = kernel.FailEvery(sweep, cfg.Producer.FailEvery)
		slog.Warn("compute failure injection enabled", "every", cfg.Producer.FailEvery)
	}

	// Presentation
	counter := &display.Counter{}
	cadence := display.NewCadence(0)
	presenters := []internal.Presenter{counter, cadence}

	var saver *display.Saver
	var window *gstsink.Window
	switch cfg.Display.Mode {
	case config.DisplaySnapshot:
		saver, err = display.NewSaver(display.SaverOptions{
			OutputDir:   cfg.Display.OutputDir,
			Format:      cfg.Display.Format,
			JPEGQuality: cfg.Display.JPEGQuality,
			EveryN:      cfg.Display.EveryN,
		})
		if err != nil {
			return err
		}
		defer saver.Close()
		presenters = append(presenters, saver)
		slog.Info("frame saving enabled",
			"directory", cfg.Display.OutputDir,
			"format", cfg.Display.Format,
			"every_n", cfg.Display.EveryN,
		)

	case config.DisplayWindow:
		window, err = gstsink.NewWindow(gstsink.Options{
			Width:  cfg.Resource.Width,
			Height: cfg.Resource.Height,
			Sink:   opts.sink,
			Title:  "framehandoff",
		})
		if err != nil {
			return err
		}
		if err := window.Start(); err != nil {
			return err
		}
		defer window.Close()
		presenters = append(presenters, window)
	}

	// Reporting and control
	reporters := []internal.Reporter{emitter.NewLogReporter("framehandoff", logger)}
	inputs := []internal.InputSource{}

	signals := input.NewSignals()
	defer signals.Stop()
	inputs = append(inputs, signals)

	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		mqttEmitter = emitter.NewMQTTEmitter(cfg.MQTT)
		if err := mqttEmitter.Connect(ctx); err != nil {
			return err
		}
		defer mqttEmitter.Disconnect()
		reporters = append(reporters, mqttEmitter)

		ctrl := control.NewHandler(cfg.MQTT, mqttEmitter.Client)
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		defer ctrl.Stop()
		inputs = append(inputs, ctrl)
	}

	if cfg.Console {
		historyFile := filepath.Join(os.TempDir(), "handoffd.history")
		console, err := input.NewConsole(input.ConsoleOptions{HistoryFile: historyFile})
		if err != nil {
			return err
		}
		defer console.Close()
		inputs = append(inputs, console)
	}

	session, err := framehandoff.New(framehandoff.Config{
		SessionID:      cfg.SessionID,
		Device:         dev,
		Kernel:         kern,
		Presenter:      display.Multi(presenters...),
		Input:          input.Multi(inputs...),
		Reporter:       emitter.Multi(reporters...),
		Period:         cfg.Period(),
		Step:           cfg.Producer.Step,
		WaitTimeout:    cfg.WaitTimeout(),
		ReportInterval: cfg.ReportInterval(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if cfg.Health.Addr != "" {
		src := health.Sources{Stats: session.Stats}
		if mqttEmitter != nil {
			src.MQTTConnected = func() bool { return mqttEmitter.Stats().Connected }
		}
		srv := health.NewServer(cfg.Health.Addr, src)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if opts.configPath != "" {
		go watchConfig(ctx, opts.configPath, cfg, session)
	}

	go shutdownWatchdog(session, cfg.ShutdownTimeout())

	fmt.Printf("Session %s running\n", session.ID())
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	runErr := session.Run(ctx)

	printFinalStats(session.Stats(), counter, cadence, saver, window, mqttEmitter)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// watchConfig applies live settings from config reloads and logs the rest.
func watchConfig(ctx context.Context, path string, current *config.Config, session framehandoff.Session) {
	err := config.Watch(ctx, path, func(next *config.Config) {
		if next.Period() != current.Period() {
			if err := session.SetPeriod(next.Period()); err != nil {
				slog.Warn("config reload: period rejected", "error", err)
			} else {
				slog.Info("config reload: period updated", "period", next.Period())
			}
		}
		if changes := config.RestartRequired(current, next); len(changes) > 0 {
			slog.Warn("config reload: settings require restart", "changes", changes)
		}
		current = next
	})
	if err != nil {
		slog.Warn("config watch stopped", "error", err)
	}
}

// shutdownWatchdog exits the process when a requested shutdown does not
// complete within timeout.
func shutdownWatchdog(session framehandoff.Session, timeout time.Duration) {
	select {
	case <-session.Done():
		return
	case <-session.ShutdownFlag().Done():
	}

	select {
	case <-session.Done():
	case <-time.After(timeout):
		slog.Error("shutdown timed out, forcing exit",
			"timeout", timeout,
			"reason", session.ShutdownFlag().Reason(),
		)
		os.Exit(2)
	}
}
