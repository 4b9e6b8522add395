// Package bootstrap wires configuration, observability and the ladder
// components into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/infrastructure/health"
	"ladderbot/internal/trading/controller"
	"ladderbot/pkg/logging"
	"ladderbot/pkg/telemetry"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// Runner is a component that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// App holds the wired application.
type App struct {
	Cfg        *config.Config
	Logger     *logging.ZapLogger
	Health     *health.HealthManager
	Controller *controller.Controller

	// Live is false when the app trades on the synthetic feed.
	Live bool

	telemetry *telemetry.Telemetry
	runners   []Runner
	closers   []func() error
}

// NewApp loads .env and the config file, applies the mode override and
// builds every component. An empty configPath runs on defaults.
func NewApp(configPath, modeOverride string) (*App, error) {
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath, modeOverride)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{Cfg: cfg}
	if err := a.setupTelemetry(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.System.LogLevel,
		File:       cfg.System.LogFile,
		MaxSizeMB:  cfg.System.LogMaxSizeMB,
		MaxBackups: cfg.System.LogMaxBackups,
		MaxAgeDays: cfg.System.LogMaxAgeDays,
	})
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.Logger = logger
	a.Health = health.NewHealthManager(logger)

	if err := a.build(); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func loadConfig(path, modeOverride string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if modeOverride != "" {
		cfg.App.Mode = modeOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *App) setupTelemetry() error {
	var traceOut io.Writer = io.Discard
	if a.Cfg.Telemetry.TraceStdout {
		traceOut = os.Stdout
	}

	t, err := telemetry.Setup("ladderbot", telemetry.Options{
		TraceWriter: traceOut,
		LogWriter:   io.Discard,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.telemetry = t
	return nil
}

// Run blocks until the controller finishes or a termination signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs the controller alongside the feed and metrics runners.
// The runners are stopped once the controller returns.
func (a *App) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	a.Logger.Info("Starting application",
		"mode", a.Cfg.App.Mode,
		"live", a.Live,
		"symbol", a.Cfg.Ladder.Symbol)

	for _, r := range a.runners {
		g.Go(func() error {
			return r.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return a.Controller.Run(gctx)
	})

	err := g.Wait()
	if closeErr := a.close(); closeErr != nil {
		a.Logger.Warn("Shutdown incomplete", "error", closeErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}
	a.Logger.Info("Application shut down gracefully")
	_ = a.Logger.Sync()
	return nil
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.telemetry = nil
	}
	return errors.Join(errs...)
}
