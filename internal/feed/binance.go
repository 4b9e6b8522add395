package feed

import (
	"context"
	"fmt"
	"time"

	"ladderbot/internal/core"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// BinanceSource follows the futures book ticker stream for a symbol and
// serves the mid of best bid and ask.
type BinanceSource struct {
	symbol string
	quotes *quoteCache
	logger core.ILogger

	serve func(symbol string, handler futures.WsBookTickerHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error)
}

func NewBinanceSource(symbol string, maxAge time.Duration, logger core.ILogger) *BinanceSource {
	return &BinanceSource{
		symbol: symbol,
		quotes: newQuoteCache(maxAge),
		logger: logger.WithField("component", "binance_feed").WithField("symbol", symbol),
		serve:  futures.WsBookTickerServe,
	}
}

func (b *BinanceSource) Name() string { return "binance" }

// Run keeps the book ticker subscription alive until ctx ends, resubscribing
// after the stream drops.
func (b *BinanceSource) Run(ctx context.Context) error {
	for {
		doneC, stopC, err := b.serve(b.symbol, b.onBookTicker, func(err error) {
			b.logger.Warn("Book ticker stream error", "error", err)
		})
		if err != nil {
			b.logger.Error("Failed to subscribe to book ticker", "error", err)
		} else {
			select {
			case <-ctx.Done():
				stopC <- struct{}{}
				<-doneC
				return nil
			case <-doneC:
				b.logger.Warn("Book ticker stream closed, resubscribing")
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

func (b *BinanceSource) NextPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.quotes.latest()
}

func (b *BinanceSource) onBookTicker(event *futures.WsBookTickerEvent) {
	bid, err := decimal.NewFromString(event.BestBidPrice)
	if err != nil {
		b.logger.Warn("Bad bid in book ticker", "value", event.BestBidPrice)
		return
	}
	ask, err := decimal.NewFromString(event.BestAskPrice)
	if err != nil {
		b.logger.Warn("Bad ask in book ticker", "value", event.BestAskPrice)
		return
	}
	if !b.quotes.update(bid, ask) {
		b.logger.Debug(fmt.Sprintf("Ignoring book ticker %s/%s", bid, ask))
	}
}
