package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricTicksTotal           = "ladder_ticks_total"
	MetricEventsTotal          = "ladder_events_total"
	MetricGatewayFailuresTotal = "ladder_gateway_failures_total"
	MetricStep                 = "ladder_step"
	MetricCyclePnL             = "ladder_cycle_pnl"
	MetricTickLatency          = "ladder_tick_latency_ms"
	MetricBreakerOpen          = "ladder_circuit_breaker_open"
)

// MetricsHolder holds the ladder instruments. Until InitMetrics runs every
// instrument is a no-op, so callers never need a nil check.
type MetricsHolder struct {
	TicksTotal           metric.Int64Counter
	EventsTotal          metric.Int64Counter
	GatewayFailuresTotal metric.Int64Counter
	Step                 metric.Int64ObservableGauge
	CyclePnL             metric.Float64UpDownCounter
	TickLatency          metric.Float64Histogram
	BreakerOpen          metric.Int64ObservableGauge

	mu          sync.RWMutex
	stepMap     map[string]int64
	breakerOpen int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = newMetricsHolder()
	})
	return globalMetrics
}

func newMetricsHolder() *MetricsHolder {
	m := &MetricsHolder{stepMap: make(map[string]int64)}
	_ = m.InitMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.TicksTotal, err = meter.Int64Counter(MetricTicksTotal, metric.WithDescription("Prices fed to the ladder engine"))
	if err != nil {
		return err
	}

	m.EventsTotal, err = meter.Int64Counter(MetricEventsTotal, metric.WithDescription("Ladder events by kind"))
	if err != nil {
		return err
	}

	m.GatewayFailuresTotal, err = meter.Int64Counter(MetricGatewayFailuresTotal, metric.WithDescription("Failed order gateway calls by operation"))
	if err != nil {
		return err
	}

	m.CyclePnL, err = meter.Float64UpDownCounter(MetricCyclePnL, metric.WithDescription("Cumulative idealized realized PnL of finished cycles"))
	if err != nil {
		return err
	}

	m.TickLatency, err = meter.Float64Histogram(MetricTickLatency, metric.WithDescription("Time from price arrival to intents dispatched"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.BreakerOpen, err = meter.Int64ObservableGauge(MetricBreakerOpen, metric.WithDescription("Circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.breakerOpen)
			return nil
		}))
	if err != nil {
		return err
	}

	m.Step, err = meter.Int64ObservableGauge(MetricStep, metric.WithDescription("Current ladder step"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.stepMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	return err
}

func (m *MetricsHolder) SetStep(symbol string, step int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepMap[symbol] = step
}

func (m *MetricsHolder) SetBreakerOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if open {
		m.breakerOpen = 1
	} else {
		m.breakerOpen = 0
	}
}
