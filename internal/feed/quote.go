package feed

import (
	"fmt"
	"sync"
	"time"

	apperrors "ladderbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// quoteCache holds the latest mid price pushed by a streaming source.
type quoteCache struct {
	mu     sync.RWMutex
	mid    float64
	at     time.Time
	maxAge time.Duration
	now    func() time.Time
}

func newQuoteCache(maxAge time.Duration) *quoteCache {
	return &quoteCache{maxAge: maxAge, now: time.Now}
}

// update stores the mid of bid and ask. Crossed or empty books are dropped.
func (q *quoteCache) update(bid, ask decimal.Decimal) bool {
	if !bid.IsPositive() || !ask.IsPositive() || bid.GreaterThan(ask) {
		return false
	}
	mid, _ := bid.Add(ask).Div(decimal.NewFromInt(2)).Float64()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.mid = mid
	q.at = q.now()
	return true
}

func (q *quoteCache) latest() (float64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.at.IsZero() {
		return 0, fmt.Errorf("%w: no quote received yet", apperrors.ErrFeedUnavailable)
	}
	if q.maxAge > 0 {
		if age := q.now().Sub(q.at); age > q.maxAge {
			return 0, fmt.Errorf("%w: last quote is %s old", apperrors.ErrFeedUnavailable, age.Round(time.Millisecond))
		}
	}
	return q.mid, nil
}
