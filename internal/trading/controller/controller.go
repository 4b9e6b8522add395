// Package controller drives the ladder engine from a price source and
// executes its intents against an order gateway.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ladderbot/internal/core"
	"ladderbot/internal/trading/ladder"
	apperrors "ladderbot/pkg/errors"
	"ladderbot/pkg/logging"
	"ladderbot/pkg/retry"
	"ladderbot/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// AnchorChecker vets a base price before a cycle is started on it.
type AnchorChecker interface {
	CheckAnchor(params ladder.Params, basePrice float64) error
}

type fallback struct {
	source     core.IPriceSource
	gateway    core.IOrderGateway
	startPrice float64
}

// Controller owns the tick loop. The engine is only touched from Run.
type Controller struct {
	engine  *ladder.Engine
	source  core.IPriceSource
	gateway core.IOrderGateway
	events  core.IEventLog

	logger   core.ILogger
	breaker  core.ICircuitBreaker
	alerter  core.IAlerter
	safety   AnchorChecker
	fallback *fallback

	symbol       string
	tickInterval time.Duration
	opTimeout    time.Duration
	cycles       int
	basePrice    *float64
	feedRetry    retry.RetryPolicy
	now          func() time.Time

	tracer    trace.Tracer
	started   int
	lastPrice float64
}

type Option func(*Controller)

func WithLogger(logger core.ILogger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithBreaker(b core.ICircuitBreaker) Option {
	return func(c *Controller) { c.breaker = b }
}

func WithAlerter(a core.IAlerter) Option {
	return func(c *Controller) { c.alerter = a }
}

func WithAnchorChecker(s AnchorChecker) Option {
	return func(c *Controller) { c.safety = s }
}

func WithSymbol(symbol string) Option {
	return func(c *Controller) { c.symbol = symbol }
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickInterval = d }
}

// WithGatewayTimeout bounds each gateway call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(c *Controller) { c.opTimeout = d }
}

// WithCycles limits how many cycles Run starts; 0 runs until cancelled.
func WithCycles(n int) Option {
	return func(c *Controller) { c.cycles = n }
}

// WithBasePrice anchors the first cycle at price instead of the first feed price.
func WithBasePrice(price float64) Option {
	return func(c *Controller) { c.basePrice = &price }
}

func WithFeedRetry(p retry.RetryPolicy) Option {
	return func(c *Controller) { c.feedRetry = p }
}

// WithFallback switches to source and gateway, anchored at startPrice, when
// the primary feed cannot produce a first price.
func WithFallback(source core.IPriceSource, gateway core.IOrderGateway, startPrice float64) Option {
	return func(c *Controller) {
		c.fallback = &fallback{source: source, gateway: gateway, startPrice: startPrice}
	}
}

// WithClock sets the time source for event log rows and tick latency.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(engine *ladder.Engine, source core.IPriceSource, gateway core.IOrderGateway, events core.IEventLog, opts ...Option) *Controller {
	c := &Controller{
		engine:       engine,
		source:       source,
		gateway:      gateway,
		events:       events,
		tickInterval: time.Second,
		opTimeout:    10 * time.Second,
		cycles:       1,
		feedRetry:    retry.DefaultPolicy,
		now:          time.Now,
		tracer:       telemetry.GetTracer("ladderbot/controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}
	c.logger = c.logger.WithField("component", "controller")
	return c
}

// Source is the price source currently in use.
func (c *Controller) Source() core.IPriceSource {
	return c.source
}

// Gateway is the order gateway currently in use.
func (c *Controller) Gateway() core.IOrderGateway {
	return c.gateway
}

// CyclesStarted reports how many cycles Run has started.
func (c *Controller) CyclesStarted() int {
	return c.started
}

// Run starts the first cycle and processes ticks until the cycle budget is
// spent, the breaker refuses a restart, or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.record("=== Starting ladderbot ===")
	defer c.record("=== Bot ended ===")

	base, err := c.resolveBasePrice(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := c.startCycle(ctx, base); err != nil {
		return err
	}

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Controller stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}

		ev, err := c.tick(ctx)
		if err != nil {
			return err
		}
		if !ev.Terminal() {
			continue
		}

		if c.cycles > 0 && c.started >= c.cycles {
			c.record("Cycle budget spent. Ready for next manual start.")
			return nil
		}
		if c.breaker != nil && c.breaker.IsTripped() {
			c.record("Circuit breaker open -> not starting a new cycle")
			c.alert(ctx, "Ladder halted", "circuit breaker refused a new cycle", core.AlertCritical, nil)
			return nil
		}
		if err := c.startCycle(ctx, c.lastPrice); err != nil {
			return err
		}
	}
}

// resolveBasePrice probes the feed when no anchor is configured or a
// fallback exists, switching to the fallback when the probe fails.
func (c *Controller) resolveBasePrice(ctx context.Context) (float64, error) {
	if c.basePrice != nil && c.fallback == nil {
		c.lastPrice = *c.basePrice
		return *c.basePrice, nil
	}

	price, err := c.nextPrice(ctx)
	if err == nil {
		c.lastPrice = roundCents(price)
		if c.basePrice != nil {
			return *c.basePrice, nil
		}
		return c.lastPrice, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	if c.fallback == nil {
		return 0, fmt.Errorf("first price from %s: %w", c.source.Name(), err)
	}

	c.logger.Warn("Primary feed unavailable", "source", c.source.Name(), "error", err)
	c.record(fmt.Sprintf("Could not fetch market price from %s. Switching to simulation.", c.source.Name()))
	fb := c.fallback
	c.source = fb.source
	c.gateway = fb.gateway
	c.fallback = nil

	base := fb.startPrice
	if c.basePrice != nil {
		base = *c.basePrice
	}
	c.lastPrice = base
	return base, nil
}

func (c *Controller) startCycle(ctx context.Context, base float64) error {
	params := c.engine.Params()
	if c.safety != nil {
		if err := c.safety.CheckAnchor(params, base); err != nil {
			return fmt.Errorf("refusing to start cycle: %w", err)
		}
	}

	res, err := c.engine.StartCycle(base)
	if err != nil {
		return fmt.Errorf("start cycle: %w", err)
	}
	c.started++

	c.record(fmt.Sprintf("Starting cycle %d with base price = %s | gateway = %s | feed = %s",
		c.started, formatPrice(base), c.gateway.Name(), c.source.Name()))
	c.recordTrade(*res.Opened)
	if q := res.Queued; q != nil {
		c.record(fmt.Sprintf("Initial BUY placed @ %s lot %s TP %s ; pending %s @%s lot %s",
			res.Opened.Entry, res.Opened.Lot, res.Opened.TP, upper(q.Kind), q.TriggerPrice, q.Lot))
	}

	c.observe(ctx, res)
	c.dispatch(ctx, res.Intents)
	return nil
}

// tick reads one price and applies it. Only engine state errors are returned.
func (c *Controller) tick(ctx context.Context) (ladder.Event, error) {
	price, err := c.nextPrice(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("Tick read failed", "source", c.source.Name(), "error", err)
			c.record(fmt.Sprintf("Tick read failed from %s, retrying...", c.source.Name()))
		}
		return ladder.EventNone, nil
	}
	start := c.now()

	ctx, span := c.tracer.Start(ctx, "ladder.tick", trace.WithAttributes(
		attribute.String("symbol", c.symbol),
		attribute.Float64("price", price),
	))
	defer span.End()

	res, err := c.engine.OnTick(price)
	if err != nil {
		if errors.Is(err, ladder.ErrInvalidPrice) {
			c.logger.Warn("Ignoring tick", "source", c.source.Name(), "price", price, "error", err)
			return ladder.EventNone, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ladder.EventNone, err
	}

	m := telemetry.GetGlobalMetrics()
	m.TicksTotal.Add(ctx, 1)
	c.record("Tick price = " + formatPrice(price))
	c.lastPrice = price
	span.SetAttributes(attribute.String("event", res.Event.String()))

	c.apply(ctx, res, price)
	m.TickLatency.Record(ctx, float64(c.now().Sub(start).Microseconds())/1000.0)
	return res.Event, nil
}

func (c *Controller) apply(ctx context.Context, res ladder.Result, price float64) {
	switch res.Event {
	case ladder.EventNone:
		return
	case ladder.EventFilled:
		c.recordTrade(*res.Opened)
		if q := res.Queued; q != nil {
			c.record(fmt.Sprintf("Placed pending %s @%s lot %s TP %s", upper(q.Kind), q.TriggerPrice, q.Lot, q.TP))
		}
		c.observe(ctx, res)
		c.dispatch(ctx, res.Intents)
		c.record("A pending order filled and next pending placed.")
	case ladder.EventTPHit:
		c.record(fmt.Sprintf("TP HIT %s at %s target %s -> CLOSE ALL", upper(res.Trigger.Side), formatPrice(price), res.Trigger.TP))
		c.finish(ctx, res)
		c.record("Cycle finished with TP hit.")
	case ladder.EventStopped:
		c.record("Max steps reached -> closing all for safety")
		c.finish(ctx, res)
		c.record("Cycle stopped due to safety limits.")
		c.alert(ctx, "Ladder stopped", "step limit reached, all positions closed", core.AlertWarning, map[string]string{
			"symbol":    c.symbol,
			"positions": strconv.Itoa(len(res.Closed)),
			"pnl":       res.PnL.StringFixed(2),
		})
	default:
		panic(fmt.Sprintf("unreachable: unexpected event %s", res.Event))
	}
}

// finish closes a terminal cycle. The engine has already reset, so gateway
// failures here are reported but change nothing.
func (c *Controller) finish(ctx context.Context, res ladder.Result) {
	c.dispatch(ctx, res.Intents)
	for _, p := range res.Closed {
		c.record("Closing position " + p.String())
	}
	c.observe(ctx, res)

	m := telemetry.GetGlobalMetrics()
	m.CyclePnL.Add(ctx, res.PnL.InexactFloat64(), metric.WithAttributes(attribute.String("event", res.Event.String())))
	c.logger.Info("Cycle closed", "event", res.Event.String(), "positions", len(res.Closed), "pnl", res.PnL.String())

	if c.breaker != nil {
		c.breaker.RecordCycle(res.PnL)
	}
}

func (c *Controller) dispatch(ctx context.Context, intents []ladder.Intent) {
	for _, in := range intents {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		var (
			conf core.Confirmation
			err  error
		)
		switch in.Kind {
		case ladder.IntentOpen:
			conf, err = c.gateway.OpenPosition(opCtx, in.Side, in.Lot, in.TP)
		case ladder.IntentCloseAll:
			conf, err = c.gateway.CloseAll(opCtx)
		default:
			cancel()
			panic(fmt.Sprintf("unreachable: unexpected intent %s", in.Kind))
		}
		cancel()

		if err != nil {
			c.gatewayFailure(ctx, in, err)
			continue
		}
		c.logger.Info("Gateway confirmed",
			"op", in.Kind.String(),
			"gateway", c.gateway.Name(),
			"order_id", conf.OrderID,
			"closed", conf.Closed)
	}
}

func (c *Controller) gatewayFailure(ctx context.Context, in ladder.Intent, err error) {
	if !errors.Is(err, apperrors.ErrGatewayFailure) {
		err = fmt.Errorf("%w: %w", apperrors.ErrGatewayFailure, err)
	}
	op := in.Kind.String()
	telemetry.GetGlobalMetrics().GatewayFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	trace.SpanFromContext(ctx).RecordError(err)

	c.logger.Error("Gateway call failed", "op", op, "gateway", c.gateway.Name(), "error", err)
	desc := op
	if in.Kind == ladder.IntentOpen {
		desc = fmt.Sprintf("%s %s lot %s", op, in.Side, in.Lot)
	}
	c.record(fmt.Sprintf("GATEWAY FAILURE %s: %v", desc, err))
	c.alert(ctx, "Gateway failure", err.Error(), core.AlertError, map[string]string{
		"op":      op,
		"gateway": c.gateway.Name(),
		"symbol":  c.symbol,
	})
}

func (c *Controller) observe(ctx context.Context, res ladder.Result) {
	m := telemetry.GetGlobalMetrics()
	m.EventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", res.Event.String())))

	step := 0
	if cycle, ok := c.engine.Snapshot(); ok {
		step = cycle.Step
	}
	m.SetStep(c.symbol, int64(step))
}

func (c *Controller) nextPrice(ctx context.Context) (float64, error) {
	return retry.DoValue(ctx, c.feedRetry, isFeedUnavailable, func() (float64, error) {
		return c.source.NextPrice(ctx)
	})
}

func (c *Controller) recordTrade(p ladder.Position) {
	c.record(fmt.Sprintf("TRADE => %s entry=%s lot=%s tp=%s", upper(p.Side), p.Entry, p.Lot, p.TP))
}

// record writes msg to the logger and the event log.
func (c *Controller) record(msg string) {
	c.logger.Info(msg)
	if err := c.events.Append(c.now(), msg); err != nil {
		c.logger.Warn("Event log append failed", "error", err)
	}
}

func (c *Controller) alert(ctx context.Context, title, message string, level core.AlertLevel, fields map[string]string) {
	if c.alerter == nil {
		return
	}
	c.alerter.Alert(ctx, title, message, level, fields)
}

func isFeedUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrFeedUnavailable)
}

func formatPrice(price float64) string {
	return decimal.NewFromFloat(price).String()
}

func roundCents(price float64) float64 {
	return decimal.NewFromFloat(price).Round(2).InexactFloat64()
}

func upper(s fmt.Stringer) string {
	return strings.ToUpper(s.String())
}
