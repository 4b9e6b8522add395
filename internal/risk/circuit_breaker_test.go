package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_ConsecutiveLosses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{MaxConsecutiveLosses: 3})

	cb.RecordCycle(decimal.NewFromFloat(-0.11))
	cb.RecordCycle(decimal.NewFromFloat(-0.5))
	assert.False(t, cb.IsTripped())

	cb.RecordCycle(decimal.NewFromFloat(0.05)) // win resets the streak
	cb.RecordCycle(decimal.NewFromFloat(-1))
	cb.RecordCycle(decimal.NewFromFloat(-1))
	assert.False(t, cb.IsTripped())

	cb.RecordCycle(decimal.NewFromFloat(-1))
	assert.True(t, cb.IsTripped())
	assert.Contains(t, cb.Reason(), "consecutive")
}

func TestCircuitBreaker_Drawdown(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{MaxDrawdownAmount: decimal.NewFromInt(2)})

	cb.RecordCycle(decimal.NewFromFloat(-1.5))
	assert.False(t, cb.IsTripped())
	cb.RecordCycle(decimal.NewFromFloat(-0.6))
	assert.True(t, cb.IsTripped())
}

func TestCircuitBreaker_DisabledLimits(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{})
	for i := 0; i < 10; i++ {
		cb.RecordCycle(decimal.NewFromInt(-100))
	}
	assert.False(t, cb.IsTripped())
}

func TestCircuitBreaker_CooldownAndReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitConfig{MaxConsecutiveLosses: 1, CooldownPeriod: time.Minute})
	cb.now = func() time.Time { return now }

	cb.RecordCycle(decimal.NewFromInt(-1))
	assert.True(t, cb.IsTripped())

	now = now.Add(2 * time.Minute)
	assert.False(t, cb.IsTripped())

	cb.RecordCycle(decimal.NewFromInt(-1))
	assert.True(t, cb.IsTripped())
	cb.Reset()
	assert.False(t, cb.IsTripped())
	assert.Empty(t, cb.Reason())
}
