package ladder

import (
	"fmt"

	"ladderbot/internal/core"

	"github.com/shopspring/decimal"
)

// OrderKind is the closed set of conditional orders a ladder can queue.
type OrderKind int

const (
	BuyStop OrderKind = iota + 1
	SellStop
)

func (k OrderKind) String() string {
	switch k {
	case BuyStop:
		return "buy_stop"
	case SellStop:
		return "sell_stop"
	default:
		return fmt.Sprintf("OrderKind(%d)", int(k))
	}
}

// Side is the side of the position the order opens when it fills.
func (k OrderKind) Side() core.Side {
	switch k {
	case BuyStop:
		return core.SideBuy
	case SellStop:
		return core.SideSell
	default:
		panic("unreachable: invalid order kind")
	}
}

// Position is an open rung of the current cycle.
type Position struct {
	Side  core.Side
	Entry decimal.Decimal
	Lot   decimal.Decimal
	TP    decimal.Decimal
	Step  int
}

// TPReached reports whether price satisfies the position's take profit.
func (p Position) TPReached(price decimal.Decimal) bool {
	switch p.Side {
	case core.SideBuy:
		return price.GreaterThanOrEqual(p.TP)
	case core.SideSell:
		return price.LessThanOrEqual(p.TP)
	default:
		panic("unreachable: invalid side")
	}
}

// PnL is the idealized profit of closing the position at price.
func (p Position) PnL(price decimal.Decimal) decimal.Decimal {
	switch p.Side {
	case core.SideBuy:
		return price.Sub(p.Entry).Mul(p.Lot)
	case core.SideSell:
		return p.Entry.Sub(price).Mul(p.Lot)
	default:
		panic("unreachable: invalid side")
	}
}

func (p Position) String() string {
	return fmt.Sprintf("%s entry=%s lot=%s tp=%s", p.Side, p.Entry, p.Lot, p.TP)
}

// PendingOrder is the next rung, waiting for its trigger price.
type PendingOrder struct {
	Kind         OrderKind
	TriggerPrice decimal.Decimal
	Lot          decimal.Decimal
	TP           decimal.Decimal
	Step         int
}

// Triggered reports whether price crosses the trigger.
func (o PendingOrder) Triggered(price decimal.Decimal) bool {
	switch o.Kind {
	case BuyStop:
		return price.GreaterThanOrEqual(o.TriggerPrice)
	case SellStop:
		return price.LessThanOrEqual(o.TriggerPrice)
	default:
		panic("unreachable: invalid order kind")
	}
}

func (o PendingOrder) String() string {
	return fmt.Sprintf("%s @%s lot=%s tp=%s step=%d", o.Kind, o.TriggerPrice, o.Lot, o.TP, o.Step)
}

// Cycle is the full state of one ladder run. Step is the rung index of the
// most recently queued order; it is 1 right after StartCycle.
type Cycle struct {
	BasePrice decimal.Decimal
	Step      int
	Positions []Position
	Pending   *PendingOrder
}

func (c *Cycle) clone() Cycle {
	out := Cycle{
		BasePrice: c.BasePrice,
		Step:      c.Step,
		Positions: append([]Position(nil), c.Positions...),
	}
	if c.Pending != nil {
		p := *c.Pending
		out.Pending = &p
	}
	return out
}

// Event is the outcome of a single engine call.
type Event int

const (
	EventNone Event = iota
	EventOpened
	EventFilled
	EventTPHit
	EventStopped
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventOpened:
		return "opened"
	case EventFilled:
		return "filled"
	case EventTPHit:
		return "tp_hit"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Terminal reports whether the event ended the cycle.
func (e Event) Terminal() bool {
	return e == EventTPHit || e == EventStopped
}

// IntentKind is the closed set of actions the engine asks a gateway to take.
type IntentKind int

const (
	IntentOpen IntentKind = iota + 1
	IntentCloseAll
)

func (k IntentKind) String() string {
	switch k {
	case IntentOpen:
		return "open"
	case IntentCloseAll:
		return "close_all"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is an order instruction. Side, Lot, Price and TP are set for
// IntentOpen only.
type Intent struct {
	Kind  IntentKind
	Side  core.Side
	Lot   decimal.Decimal
	Price decimal.Decimal
	TP    decimal.Decimal
}

func openIntent(p Position) Intent {
	return Intent{Kind: IntentOpen, Side: p.Side, Lot: p.Lot, Price: p.Entry, TP: p.TP}
}

var closeAllIntent = Intent{Kind: IntentCloseAll}

// Result describes what an engine call decided.
type Result struct {
	Event   Event
	Intents []Intent

	// Opened is the position created by EventOpened or EventFilled.
	Opened *Position
	// Queued is the order enqueued by this call, if any.
	Queued *PendingOrder
	// Trigger is the position whose TP fired on EventTPHit.
	Trigger *Position
	// Closed holds the liquidated positions on terminal events.
	Closed []Position
	// PnL is the idealized realized PnL of Closed at the tick price.
	PnL decimal.Decimal
}
