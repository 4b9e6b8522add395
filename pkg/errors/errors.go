package apperrors

import "errors"

// Standardized collaborator errors. The ladder engine never sees these; the
// controller logs them and carries on.
var (
	ErrGatewayFailure    = errors.New("gateway failure")
	ErrFeedUnavailable   = errors.New("feed unavailable")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrOrderRejected     = errors.New("order rejected")
)
