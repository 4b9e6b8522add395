// Package safety provides pre-flight checks on ladder parameters
package safety

import (
	"fmt"

	"ladderbot/internal/core"
	"ladderbot/internal/trading/ladder"

	"github.com/shopspring/decimal"
)

// SafetyChecker validates a ladder before any order is sent
type SafetyChecker struct {
	logger core.ILogger
}

// NewSafetyChecker creates a new safety checker
func NewSafetyChecker(logger core.ILogger) *SafetyChecker {
	return &SafetyChecker{
		logger: logger.WithField("component", "safety"),
	}
}

// CheckExposure rejects parameters whose worst-case open lot, every rung up
// to the step-limit stop, exceeds maxTotalLot. A zero cap disables the check.
func (s *SafetyChecker) CheckExposure(params ladder.Params, maxTotalLot decimal.Decimal) error {
	exposure := params.MaxExposure()
	s.logger.Info("Ladder exposure",
		"base_lot", params.BaseLot.String(),
		"max_steps", params.MaxSteps,
		"largest_rung", params.LotForRung(params.MaxSteps).String(),
		"total_lot", exposure.String())

	if maxTotalLot.IsPositive() && exposure.GreaterThan(maxTotalLot) {
		return fmt.Errorf("worst-case exposure %s exceeds max total lot %s", exposure, maxTotalLot)
	}
	return nil
}

// CheckAnchor rejects an anchor price that would put the sell rung or its
// take profit at or below zero.
func (s *SafetyChecker) CheckAnchor(params ladder.Params, basePrice float64) error {
	base := decimal.NewFromFloat(basePrice)
	floor := base.Sub(params.Gap).Sub(params.TPPoints)
	if !floor.IsPositive() {
		return fmt.Errorf("base price %s too low for gap %s and tp %s", base, params.Gap, params.TPPoints)
	}
	return nil
}
