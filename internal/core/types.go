package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an open position.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Confirmation is the venue acknowledgement of an open or close request
type Confirmation struct {
	OrderID  string
	Side     Side
	Lot      decimal.Decimal
	Price    decimal.Decimal
	TP       decimal.Decimal
	Closed   int // number of positions closed by a close-all
	Executed time.Time
}

// AlertLevel is the severity of an operator alert
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertError    AlertLevel = "ERROR"
	AlertCritical AlertLevel = "CRITICAL"
)
