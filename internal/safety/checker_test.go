package safety

import (
	"testing"

	"ladderbot/internal/trading/ladder"
	"ladderbot/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func params(maxSteps int) ladder.Params {
	return ladder.Params{
		BaseLot:  decimal.RequireFromString("0.01"),
		Gap:      decimal.NewFromInt(3),
		TPPoints: decimal.NewFromInt(5),
		MaxSteps: maxSteps,
	}
}

func TestCheckExposure(t *testing.T) {
	s := NewSafetyChecker(logging.NewNopLogger())

	tests := []struct {
		name     string
		maxSteps int
		cap      string
		wantErr  bool
	}{
		{"disabled", 20, "0", false},
		{"within cap", 6, "1.27", false},
		{"over cap", 7, "1.27", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckExposure(params(tt.maxSteps), decimal.RequireFromString(tt.cap))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckAnchor(t *testing.T) {
	s := NewSafetyChecker(logging.NewNopLogger())
	assert.NoError(t, s.CheckAnchor(params(6), 3300))
	assert.Error(t, s.CheckAnchor(params(6), 8))
}
