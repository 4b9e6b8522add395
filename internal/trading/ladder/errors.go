package ladder

import "errors"

var (
	// ErrInvalidState is returned by OnTick when no cycle is active.
	ErrInvalidState = errors.New("ladder: no active cycle")
	// ErrInvalidPrice rejects NaN and infinite prices; state is unchanged.
	ErrInvalidPrice = errors.New("ladder: invalid price")
	// ErrCycleActive is returned by StartCycle while a cycle is running.
	ErrCycleActive = errors.New("ladder: cycle already active")
)
