package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ladderbot/internal/alert"
	"ladderbot/internal/config"
	"ladderbot/internal/core"
	"ladderbot/internal/eventlog"
	"ladderbot/internal/feed"
	"ladderbot/internal/gateway"
	"ladderbot/internal/infrastructure/metrics"
	"ladderbot/internal/risk"
	"ladderbot/internal/safety"
	"ladderbot/internal/trading/controller"
	"ladderbot/internal/trading/ladder"
	pkghttp "ladderbot/pkg/http"
	"ladderbot/pkg/retry"

	"github.com/shopspring/decimal"
)

var errBreakerOpen = errors.New("circuit breaker open")

func (a *App) build() error {
	cfg := a.Cfg
	params := cfg.LadderParams()

	checker := safety.NewSafetyChecker(a.Logger)
	if err := checker.CheckExposure(params, decimal.NewFromFloat(cfg.Risk.MaxTotalLot)); err != nil {
		return fmt.Errorf("safety: %w", err)
	}

	engine, err := ladder.NewEngine(params)
	if err != nil {
		return err
	}

	events, err := a.buildEventLog()
	if err != nil {
		return err
	}

	alerts := alert.NewAlertManager(cfg.Alert.PoolSize, a.Logger)
	if token := cfg.Alert.TelegramToken.Reveal(); token != "" && cfg.Alert.TelegramChatID != "" {
		alerts.AddChannel(alert.NewTelegramChannel(token, cfg.Alert.TelegramChatID))
	}
	if hook := cfg.Alert.SlackWebhook.Reveal(); hook != "" {
		alerts.AddChannel(alert.NewSlackChannel(hook))
	}
	a.closers = append(a.closers, func() error {
		alerts.Close()
		return nil
	})

	breaker := risk.NewCircuitBreaker(circuitConfig(cfg.Risk))

	startPrice := cfg.Feed.SimStartPrice
	if cfg.Ladder.BasePrice != nil {
		startPrice = *cfg.Ladder.BasePrice
	}
	simSource := feed.NewRandomWalk(startPrice, cfg.Feed.SimMaxStep, simSeed(cfg.Feed.SimSeed))
	paper := gateway.NewPaperGateway()

	opts := []controller.Option{
		controller.WithLogger(a.Logger),
		controller.WithSymbol(cfg.Ladder.Symbol),
		controller.WithTickInterval(cfg.Ladder.TickInterval),
		controller.WithCycles(cfg.App.Cycles),
		controller.WithBreaker(breaker),
		controller.WithAlerter(alerts),
		controller.WithAnchorChecker(checker),
		controller.WithFeedRetry(retry.RetryPolicy{
			MaxAttempts:    cfg.Feed.RetryAttempts,
			InitialBackoff: cfg.Feed.RetryBackoff,
			MaxBackoff:     8 * cfg.Feed.RetryBackoff,
		}),
	}

	var (
		source core.IPriceSource = simSource
		gw     core.IOrderGateway = paper
	)

	a.Live = cfg.App.Mode == config.ModeLive || (cfg.App.Mode == config.ModeAuto && cfg.LiveConfigured())
	if a.Live {
		if source, err = a.buildLiveFeed(); err != nil {
			return err
		}
		gw = a.buildGateway()
		opts = append(opts, controller.WithFallback(simSource, paper, startPrice))
		if cfg.Ladder.BasePrice != nil {
			opts = append(opts, controller.WithBasePrice(*cfg.Ladder.BasePrice))
		}
	} else {
		opts = append(opts, controller.WithBasePrice(startPrice))
	}

	a.Controller = controller.New(engine, source, gw, events, opts...)

	a.Health.Register("engine", func() error {
		if engine.Active() {
			return nil
		}
		return errors.New("no active cycle")
	})
	a.Health.Register("risk", func() error {
		if breaker.IsTripped() {
			return fmt.Errorf("%w: %s", errBreakerOpen, breaker.Reason())
		}
		return nil
	})

	if cfg.Telemetry.EnableMetrics {
		a.runners = append(a.runners, metrics.NewServer(cfg.Telemetry.MetricsPort, a.Health, a.Logger))
	}
	return nil
}

func (a *App) buildEventLog() (core.IEventLog, error) {
	var logs []core.IEventLog
	if path := a.Cfg.EventLog.CSVFile; path != "" {
		l, err := eventlog.OpenCSV(path)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if path := a.Cfg.EventLog.SQLiteFile; path != "" {
		l, err := eventlog.OpenSQLite(path)
		if err != nil {
			for _, opened := range logs {
				_ = opened.Close()
			}
			return nil, err
		}
		logs = append(logs, l)
	}

	events := eventlog.NewMultiLog(logs...)
	a.closers = append(a.closers, events.Close)
	return events, nil
}

func (a *App) bridgeClient() *pkghttp.Client {
	var signer pkghttp.Signer
	if token := a.Cfg.Bridge.Token.Reveal(); token != "" {
		signer = pkghttp.BearerSigner{Token: token}
	}
	return pkghttp.NewClient(a.Cfg.Bridge.URL, a.Cfg.Bridge.Timeout, signer)
}

func (a *App) buildLiveFeed() (core.IPriceSource, error) {
	cfg := a.Cfg
	switch cfg.Feed.Provider {
	case "bridge":
		return feed.NewBridgeSource(a.bridgeClient(), cfg.Ladder.Symbol), nil
	case "stream":
		s := feed.NewStreamSource(cfg.Feed.StreamURL, cfg.Feed.MaxQuoteAge, a.Logger)
		a.runners = append(a.runners, RunnerFunc(func(ctx context.Context) error {
			s.Start(ctx)
			s.Wait()
			return nil
		}))
		a.registerQuoteHealth(s)
		return s, nil
	case "binance":
		s := feed.NewBinanceSource(cfg.Feed.BinanceSym, cfg.Feed.MaxQuoteAge, a.Logger)
		a.runners = append(a.runners, s)
		a.registerQuoteHealth(s)
		return s, nil
	case "replay":
		return feed.LoadReplayCSV(cfg.Feed.ReplayFile, cfg.Feed.ReplayColumn)
	default:
		return nil, fmt.Errorf("unknown feed provider %q", cfg.Feed.Provider)
	}
}

// registerQuoteHealth reports a streaming feed unhealthy while its latest
// quote is missing or stale. Reading the cache does not consume a price.
func (a *App) registerQuoteHealth(s core.IPriceSource) {
	a.Health.Register("feed", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := s.NextPrice(ctx)
		return err
	})
}

func (a *App) buildGateway() core.IOrderGateway {
	cfg := a.Cfg
	if cfg.App.Gateway == "paper" {
		return gateway.NewPaperGateway()
	}

	gw := gateway.NewBridgeGateway(a.bridgeClient(), gateway.BridgeConfig{
		Symbol:    cfg.Ladder.Symbol,
		Magic:     cfg.Bridge.Magic,
		Comment:   cfg.Bridge.Comment,
		Deviation: cfg.Bridge.Deviation,
		RateLimit: cfg.Bridge.RateLimit,
		RateBurst: cfg.Bridge.RateBurst,
	}, a.Logger)
	a.Health.Register("gateway", gw.CheckHealth)
	return gw
}

func circuitConfig(rc config.RiskConfig) risk.CircuitConfig {
	return risk.CircuitConfig{
		MaxConsecutiveLosses: rc.MaxConsecutiveLosses,
		MaxDrawdownAmount:    decimal.NewFromFloat(rc.MaxDrawdown),
		CooldownPeriod:       rc.Cooldown,
	}
}

func simSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}
