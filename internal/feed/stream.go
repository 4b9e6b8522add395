package feed

import (
	"context"
	"encoding/json"
	"time"

	"ladderbot/internal/core"
	"ladderbot/pkg/websocket"
)

// StreamSource listens to a websocket of {"bid","ask"} messages and serves
// the latest mid. It reports the feed unavailable until the first quote
// arrives and whenever the last one is older than maxAge.
type StreamSource struct {
	client *websocket.Client
	quotes *quoteCache
	logger core.ILogger
}

func NewStreamSource(url string, maxAge time.Duration, logger core.ILogger) *StreamSource {
	s := &StreamSource{
		quotes: newQuoteCache(maxAge),
		logger: logger.WithField("component", "stream_feed"),
	}
	s.client = websocket.NewClient(url, s.onMessage, websocket.Options{}, logger)
	return s
}

func (s *StreamSource) Name() string { return "stream" }

// Start connects in the background; the stream closes when ctx ends.
func (s *StreamSource) Start(ctx context.Context) {
	s.client.Start(ctx)
}

// Wait blocks until the connection loop has exited.
func (s *StreamSource) Wait() {
	s.client.Wait()
}

func (s *StreamSource) NextPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.quotes.latest()
}

func (s *StreamSource) onMessage(message []byte) {
	var tick Tick
	if err := json.Unmarshal(message, &tick); err != nil {
		s.logger.Warn("Dropping malformed quote", "error", err)
		return
	}
	if !s.quotes.update(tick.Bid, tick.Ask) {
		s.logger.Debug("Dropping unusable quote", "bid", tick.Bid.String(), "ask", tick.Ask.String())
	}
}
