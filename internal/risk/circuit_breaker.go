// Package risk gates ladder restarts on accumulated cycle losses.
package risk

import (
	"sync"
	"time"

	"ladderbot/pkg/telemetry"

	"github.com/shopspring/decimal"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

// CircuitConfig limits are disabled when zero.
type CircuitConfig struct {
	MaxConsecutiveLosses int
	MaxDrawdownAmount    decimal.Decimal
	CooldownPeriod       time.Duration
}

// CircuitBreaker trips after too many losing cycles in a row or once the
// summed cycle PnL falls below the drawdown limit.
type CircuitBreaker struct {
	mu                sync.Mutex
	state             CircuitState
	config            CircuitConfig
	consecutiveLosses int
	totalPnL          decimal.Decimal
	lastTripped       time.Time
	reason            string
	now               func() time.Time
}

func NewCircuitBreaker(config CircuitConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:  CircuitClosed,
		config: config,
		now:    time.Now,
	}
}

// RecordCycle feeds the realized PnL of a finished cycle.
func (cb *CircuitBreaker) RecordCycle(pnl decimal.Decimal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if pnl.IsNegative() {
		cb.consecutiveLosses++
	} else {
		cb.consecutiveLosses = 0
	}
	cb.totalPnL = cb.totalPnL.Add(pnl)

	cb.checkThresholds()
}

func (cb *CircuitBreaker) checkThresholds() {
	if cb.state == CircuitOpen {
		return
	}

	if cb.config.MaxConsecutiveLosses > 0 && cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.trip("max consecutive losing cycles reached")
		return
	}

	if cb.config.MaxDrawdownAmount.IsPositive() && cb.totalPnL.LessThan(cb.config.MaxDrawdownAmount.Neg()) {
		cb.trip("max drawdown reached")
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.state = CircuitOpen
	cb.lastTripped = cb.now()
	cb.reason = reason
	telemetry.GetGlobalMetrics().SetBreakerOpen(true)
}

func (cb *CircuitBreaker) IsTripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return false
	}
	if cb.config.CooldownPeriod > 0 && cb.now().Sub(cb.lastTripped) > cb.config.CooldownPeriod {
		cb.reset()
		return false
	}
	return true
}

// Reason explains the last trip.
func (cb *CircuitBreaker) Reason() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.reason
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *CircuitBreaker) reset() {
	cb.state = CircuitClosed
	cb.consecutiveLosses = 0
	cb.totalPnL = decimal.Zero
	cb.reason = ""
	telemetry.GetGlobalMetrics().SetBreakerOpen(false)
}
