// Package gateway executes ladder order intents against a venue.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperPosition is a simulated open position.
type PaperPosition struct {
	ID     string
	Side   core.Side
	Lot    decimal.Decimal
	TP     decimal.Decimal
	Opened time.Time
}

// PaperGateway fills every request instantly in memory.
type PaperGateway struct {
	mu        sync.Mutex
	positions map[string]PaperPosition
	order     []string
	opened    int
	closed    int
	now       func() time.Time
}

func NewPaperGateway() *PaperGateway {
	return &PaperGateway{
		positions: make(map[string]PaperPosition),
		now:       time.Now,
	}
}

func (g *PaperGateway) Name() string { return "paper" }

func (g *PaperGateway) OpenPosition(ctx context.Context, side core.Side, lot, tp decimal.Decimal) (core.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return core.Confirmation{}, err
	}
	if side != core.SideBuy && side != core.SideSell {
		return core.Confirmation{}, fmt.Errorf("paper gateway: invalid side %s", side)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	pos := PaperPosition{
		ID:     uuid.NewString(),
		Side:   side,
		Lot:    lot,
		TP:     tp,
		Opened: g.now(),
	}
	g.positions[pos.ID] = pos
	g.order = append(g.order, pos.ID)
	g.opened++

	return core.Confirmation{
		OrderID:  pos.ID,
		Side:     side,
		Lot:      lot,
		TP:       tp,
		Executed: pos.Opened,
	}, nil
}

func (g *PaperGateway) CloseAll(ctx context.Context) (core.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return core.Confirmation{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.positions)
	g.positions = make(map[string]PaperPosition)
	g.order = nil
	g.closed += n

	return core.Confirmation{
		OrderID:  uuid.NewString(),
		Closed:   n,
		Executed: g.now(),
	}, nil
}

// Positions returns open positions in the order they were opened.
func (g *PaperGateway) Positions() []PaperPosition {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]PaperPosition, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.positions[id])
	}
	return out
}

// Totals reports how many positions were opened and closed overall.
func (g *PaperGateway) Totals() (opened, closed int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened, g.closed
}
