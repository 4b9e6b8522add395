// Package ladder implements the martingale ladder state machine. The engine
// performs no I/O: every call returns the event it decided and the order
// intents a gateway should execute.
package ladder

import (
	"fmt"
	"math"
	"sync"

	"ladderbot/internal/core"

	"github.com/shopspring/decimal"
)

// Engine owns the state of a single ladder.
type Engine struct {
	mu     sync.Mutex
	params Params
	cycle  *Cycle
}

// NewEngine validates params and returns an idle engine.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ladder params: %w", err)
	}
	return &Engine{params: params}, nil
}

// Params returns the immutable ladder configuration.
func (e *Engine) Params() Params {
	return e.params
}

// Active reports whether a cycle is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle != nil
}

// Snapshot returns a copy of the running cycle.
func (e *Engine) Snapshot() (Cycle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cycle == nil {
		return Cycle{}, false
	}
	return e.cycle.clone(), true
}

// StartCycle opens rung 0 as a buy at basePrice and queues the first
// sell_stop one gap below.
func (e *Engine) StartCycle(basePrice float64) (Result, error) {
	base, err := toDecimal(basePrice)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cycle != nil {
		return Result{}, ErrCycleActive
	}

	initial := Position{
		Side:  core.SideBuy,
		Entry: base,
		Lot:   e.params.LotForRung(0),
		TP:    base.Add(e.params.TPPoints),
		Step:  0,
	}
	e.cycle = &Cycle{
		BasePrice: base,
		Step:      1,
		Positions: []Position{initial},
	}
	pending := e.rung(SellStop, 1)
	e.cycle.Pending = &pending

	queued := pending
	return Result{
		Event:   EventOpened,
		Intents: []Intent{openIntent(initial)},
		Opened:  &initial,
		Queued:  &queued,
	}, nil
}

// OnTick evaluates one price observation. Rules are applied in order and the
// first match wins: take profit, pending fill, step limit.
func (e *Engine) OnTick(price float64) (Result, error) {
	px, err := toDecimal(price)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cycle
	if c == nil {
		return Result{}, ErrInvalidState
	}

	for i := range c.Positions {
		if c.Positions[i].TPReached(px) {
			trigger := c.Positions[i]
			res := e.liquidate(EventTPHit, px)
			res.Trigger = &trigger
			return res, nil
		}
	}

	if p := c.Pending; p != nil && p.Triggered(px) {
		return e.fill(*p), nil
	}

	if c.Step > e.params.MaxSteps {
		return e.liquidate(EventStopped, px), nil
	}

	return Result{Event: EventNone}, nil
}

// fill converts the pending order into a position at its trigger price and
// queues the opposite rung while capacity remains. Step advances either way.
func (e *Engine) fill(p PendingOrder) Result {
	c := e.cycle
	pos := Position{
		Side:  p.Kind.Side(),
		Entry: p.TriggerPrice,
		Lot:   p.Lot,
		TP:    p.TP,
		Step:  p.Step,
	}
	c.Positions = append(c.Positions, pos)
	c.Pending = nil

	res := Result{
		Event:   EventFilled,
		Intents: []Intent{openIntent(pos)},
		Opened:  &pos,
	}

	if c.Step+1 <= e.params.MaxSteps {
		var next PendingOrder
		switch p.Kind {
		case SellStop:
			next = e.rung(BuyStop, p.Step+1)
		case BuyStop:
			next = e.rung(SellStop, p.Step+1)
		default:
			panic("unreachable: invalid order kind")
		}
		c.Pending = &next
		queued := next
		res.Queued = &queued
	}
	c.Step++

	return res
}

// rung builds the pending order for rung n. Buy stops sit at the cycle
// anchor, sell stops one gap below it.
func (e *Engine) rung(kind OrderKind, n int) PendingOrder {
	base := e.cycle.BasePrice
	var trigger, tp decimal.Decimal
	switch kind {
	case BuyStop:
		trigger = base
		tp = trigger.Add(e.params.TPPoints)
	case SellStop:
		trigger = base.Sub(e.params.Gap)
		tp = trigger.Sub(e.params.TPPoints)
	default:
		panic("unreachable: invalid order kind")
	}
	return PendingOrder{
		Kind:         kind,
		TriggerPrice: trigger,
		Lot:          e.params.LotForRung(n),
		TP:           tp,
		Step:         n,
	}
}

func (e *Engine) liquidate(ev Event, px decimal.Decimal) Result {
	closed := e.cycle.Positions
	pnl := decimal.Zero
	for _, p := range closed {
		pnl = pnl.Add(p.PnL(px))
	}
	e.cycle = nil

	return Result{
		Event:   ev,
		Intents: []Intent{closeAllIntent},
		Closed:  closed,
		PnL:     pnl,
	}
}

func toDecimal(price float64) (decimal.Decimal, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	return decimal.NewFromFloat(price), nil
}
