package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apperrors "ladderbot/pkg/errors"
	pkghttp "ladderbot/pkg/http"

	"github.com/shopspring/decimal"
)

// Tick is the bid/ask quote shape shared by the bridge and stream feeds.
type Tick struct {
	Symbol string          `json:"symbol,omitempty"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
}

// BridgeSource polls a broker bridge for the current quote:
// GET {base}/tick/{symbol}.
type BridgeSource struct {
	client *pkghttp.Client
	symbol string
}

func NewBridgeSource(client *pkghttp.Client, symbol string) *BridgeSource {
	return &BridgeSource{client: client, symbol: symbol}
}

func (b *BridgeSource) Name() string { return "bridge" }

func (b *BridgeSource) NextPrice(ctx context.Context) (float64, error) {
	body, err := b.client.Get(ctx, "/tick/"+url.PathEscape(b.symbol), nil)
	if err != nil {
		var apiErr *pkghttp.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%w: %w %s", apperrors.ErrFeedUnavailable, apperrors.ErrInvalidSymbol, b.symbol)
		}
		return 0, fmt.Errorf("%w: %v", apperrors.ErrFeedUnavailable, err)
	}

	var tick Tick
	if err := json.Unmarshal(body, &tick); err != nil {
		return 0, fmt.Errorf("%w: malformed tick: %v", apperrors.ErrFeedUnavailable, err)
	}
	if !tick.Bid.IsPositive() || !tick.Ask.IsPositive() {
		return 0, fmt.Errorf("%w: empty quote for %s", apperrors.ErrFeedUnavailable, b.symbol)
	}

	mid, _ := tick.Bid.Add(tick.Ask).Div(decimal.NewFromInt(2)).Float64()
	return mid, nil
}
