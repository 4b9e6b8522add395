package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_ModeOverride(t *testing.T) {
	cfg, err := loadConfig("", "sim")
	require.NoError(t, err)
	assert.Equal(t, config.ModeSim, cfg.App.Mode)

	_, err = loadConfig("", "live")
	assert.Error(t, err, "live mode without a bridge url must fail validation")

	_, err = loadConfig("", "paper")
	assert.Error(t, err)
}

func TestNewApp_SimRunsOnPaper(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
app:
  mode: auto
  cycles: 1
ladder:
  base_price: 3300
  tick_interval: 1ms
feed:
  sim_seed: 7
  sim_max_step: 0.5
event_log:
  csv_file: `+filepath.Join(dir, "trade_log.csv")+`
  sqlite_file: `+filepath.Join(dir, "events.db")+`
system:
  log_level: ERROR
telemetry:
  enable_metrics: false
`)

	app, err := NewApp(path, "")
	require.NoError(t, err)

	assert.False(t, app.Live, "auto without a bridge url falls back to simulation")
	assert.Equal(t, "sim", app.Controller.Source().Name())
	assert.Equal(t, "paper", app.Controller.Gateway().Name())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, app.RunContext(ctx))
	assert.Equal(t, 1, app.Controller.CyclesStarted())

	data, err := os.ReadFile(filepath.Join(dir, "trade_log.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp,event\n")
	assert.Contains(t, string(data), "Starting cycle 1 with base price = 3300")
}

func TestNewApp_RejectsExcessiveExposure(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: sim
ladder:
  max_steps: 10
risk:
  max_total_lot: 1.0
event_log:
  csv_file: ""
telemetry:
  enable_metrics: false
`)

	_, err := NewApp(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max total lot")
}

func TestCircuitConfig_WiresRiskLimits(t *testing.T) {
	breaker := risk.NewCircuitBreaker(circuitConfig(config.RiskConfig{
		MaxConsecutiveLosses: 0,
		MaxDrawdown:          0.05,
		Cooldown:             time.Hour,
	}))

	breaker.RecordCycle(decimal.RequireFromString("-0.04"))
	assert.False(t, breaker.IsTripped())
	breaker.RecordCycle(decimal.RequireFromString("-0.02"))
	assert.True(t, breaker.IsTripped())
	assert.Equal(t, "max drawdown reached", breaker.Reason())

	cc := circuitConfig(config.RiskConfig{MaxConsecutiveLosses: 2})
	assert.Equal(t, 2, cc.MaxConsecutiveLosses)
	assert.True(t, cc.MaxDrawdownAmount.IsZero())
	assert.Zero(t, cc.CooldownPeriod)
}
