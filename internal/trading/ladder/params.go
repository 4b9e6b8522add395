package ladder

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxStepsLimit bounds MaxSteps so rung lots stay representable.
const MaxStepsLimit = 30

// Params are fixed for the lifetime of an engine.
type Params struct {
	BaseLot  decimal.Decimal
	Gap      decimal.Decimal
	TPPoints decimal.Decimal
	MaxSteps int
}

func (p Params) Validate() error {
	if !p.BaseLot.IsPositive() {
		return fmt.Errorf("base lot must be positive, got %s", p.BaseLot)
	}
	if !p.Gap.IsPositive() {
		return fmt.Errorf("gap must be positive, got %s", p.Gap)
	}
	if !p.TPPoints.IsPositive() {
		return fmt.Errorf("tp points must be positive, got %s", p.TPPoints)
	}
	if p.MaxSteps < 1 || p.MaxSteps > MaxStepsLimit {
		return fmt.Errorf("max steps must be in [1, %d], got %d", MaxStepsLimit, p.MaxSteps)
	}
	return nil
}

// LotForRung returns baseLot × 2^n.
func (p Params) LotForRung(n int) decimal.Decimal {
	return p.BaseLot.Mul(decimal.NewFromInt(int64(1) << uint(n)))
}

// MaxExposure is the summed lot of every rung a cycle can open before the
// step limit stops it: rungs 0..MaxSteps.
func (p Params) MaxExposure() decimal.Decimal {
	return p.BaseLot.Mul(decimal.NewFromInt((int64(1) << uint(p.MaxSteps+1)) - 1))
}
