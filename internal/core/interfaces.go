// Package core defines the collaborator contracts of the ladder bot
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IPriceSource produces one representative price per call.
// Implementations return an error wrapping apperrors.ErrFeedUnavailable when
// no price can be produced for this tick.
type IPriceSource interface {
	Name() string
	NextPrice(ctx context.Context) (float64, error)
}

// IOrderGateway executes ladder intents against a venue
type IOrderGateway interface {
	Name() string
	OpenPosition(ctx context.Context, side Side, lot, tp decimal.Decimal) (Confirmation, error)
	CloseAll(ctx context.Context) (Confirmation, error)
}

// IEventLog is an append-only audit record of engine decisions
type IEventLog interface {
	Append(ts time.Time, message string) error
	Close() error
}

// ICircuitBreaker gates explicit cycle restarts on accumulated losses
type ICircuitBreaker interface {
	IsTripped() bool
	RecordCycle(pnl decimal.Decimal)
	Reset()
}

// IAlerter sends operator notifications
type IAlerter interface {
	Alert(ctx context.Context, title, message string, level AlertLevel, fields map[string]string)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
