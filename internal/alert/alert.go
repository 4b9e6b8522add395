// Package alert delivers operator notifications without blocking the tick loop.
package alert

import (
	"context"
	"sync"
	"time"

	"ladderbot/internal/core"
	"ladderbot/pkg/concurrency"
)

type AlertPayload struct {
	Level     core.AlertLevel
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

type AlertChannel interface {
	Send(ctx context.Context, alert AlertPayload) error
	Name() string
}

// AlertManager fans alerts out to its channels on a bounded worker pool.
// When the pool is saturated alerts are dropped and logged.
type AlertManager struct {
	channels []AlertChannel
	pool     *concurrency.WorkerPool
	logger   core.ILogger
	timeout  time.Duration
	mu       sync.RWMutex
}

func NewAlertManager(poolSize int, logger core.ILogger) *AlertManager {
	return &AlertManager{
		channels: make([]AlertChannel, 0),
		pool: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "alerts",
			MaxWorkers:  poolSize,
			MaxCapacity: 64,
			NonBlocking: true,
		}, logger),
		logger:  logger.WithField("component", "alert_manager"),
		timeout: 10 * time.Second,
	}
}

func (am *AlertManager) AddChannel(ch AlertChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.channels = append(am.channels, ch)
	am.logger.Info("Added alert channel", "name", ch.Name())
}

func (am *AlertManager) Alert(ctx context.Context, title, message string, level core.AlertLevel, fields map[string]string) {
	payload := AlertPayload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	am.logger.Info("Triggering alert", "title", title, "level", level)

	am.mu.RLock()
	defer am.mu.RUnlock()

	// detach from the caller's cancellation; each send has its own timeout
	base := context.WithoutCancel(ctx)
	for _, ch := range am.channels {
		c := ch
		err := am.pool.Submit(func() {
			sendCtx, cancel := context.WithTimeout(base, am.timeout)
			defer cancel()
			if err := c.Send(sendCtx, payload); err != nil {
				am.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		})
		if err != nil {
			am.logger.Warn("Alert dropped", "channel", c.Name(), "title", title, "error", err)
		}
	}
}

// Close waits for queued alerts to be delivered.
func (am *AlertManager) Close() {
	am.pool.Stop()
}
