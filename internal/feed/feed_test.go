package feed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "ladderbot/pkg/errors"
	pkghttp "ladderbot/pkg/http"
	"ladderbot/pkg/logging"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomWalk_BoundedStepsRoundedToCents(t *testing.T) {
	w := NewRandomWalk(3300, 2, 42)
	prev := 3300.0
	for i := 0; i < 500; i++ {
		px, err := w.NextPrice(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(px-prev), 2.0+1e-9)
		assert.InDelta(t, math.Round(px*100)/100, px, 1e-9)
		prev = px
	}
}

func TestRandomWalk_Deterministic(t *testing.T) {
	a := NewRandomWalk(3300, 2, 7)
	b := NewRandomWalk(3300, 2, 7)
	for i := 0; i < 20; i++ {
		pa, _ := a.NextPrice(context.Background())
		pb, _ := b.NextPrice(context.Background())
		assert.Equal(t, pa, pb)
	}
}

func TestReplaySource_ExhaustsToFeedUnavailable(t *testing.T) {
	r := NewReplaySource([]float64{3300, 3297})

	px, err := r.NextPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3300.0, px)
	px, err = r.NextPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3297.0, px)

	_, err = r.NextPrice(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)
	assert.Zero(t, r.Remaining())
}

func TestLoadReplayCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,Price\n1,3300.5\n2,3297\n"), 0o644))

	r, err := LoadReplayCSV(path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Remaining())

	px, _ := r.NextPrice(context.Background())
	assert.Equal(t, 3300.5, px)
}

func TestLoadReplayCSV_BadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte("price\nabc\n"), 0o644))

	_, err := LoadReplayCSV(path, "price")
	assert.Error(t, err)
}

func TestBridgeSource_Mid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tick/XAUUSD", r.URL.Path)
		_, _ = w.Write([]byte(`{"bid":3299.8,"ask":3300.2}`))
	}))
	defer server.Close()

	src := NewBridgeSource(pkghttp.NewClient(server.URL, time.Second, nil), "XAUUSD")
	px, err := src.NextPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3300.0, px, 1e-9)
}

func TestBridgeSource_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"not found", http.StatusNotFound, `{"error":"no tick"}`},
		{"malformed", http.StatusOK, `not json`},
		{"empty quote", http.StatusOK, `{"bid":0,"ask":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			src := NewBridgeSource(pkghttp.NewClient(server.URL, time.Second, nil), "XAUUSD")
			_, err := src.NextPrice(context.Background())
			assert.True(t, errors.Is(err, apperrors.ErrFeedUnavailable), "got %v", err)
			if tt.status == http.StatusNotFound {
				assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol)
			}
		})
	}
}

func TestQuoteCache_Staleness(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := newQuoteCache(time.Second)
	q.now = func() time.Time { return now }

	_, err := q.latest()
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)

	assert.False(t, q.update(decimal.NewFromInt(10), decimal.NewFromInt(9)), "crossed book")
	assert.True(t, q.update(decimal.NewFromInt(9), decimal.NewFromInt(11)))

	px, err := q.latest()
	require.NoError(t, err)
	assert.Equal(t, 10.0, px)

	now = now.Add(2 * time.Second)
	_, err = q.latest()
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)
}

func TestStreamSource_ServesLatestMid(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"bid":"3299.5","ask":"3300.5"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	src := NewStreamSource(url, time.Minute, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		src.Wait()
	}()
	src.Start(ctx)

	require.Eventually(t, func() bool {
		px, err := src.NextPrice(context.Background())
		return err == nil && px == 3300.0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBinanceSource_BookTicker(t *testing.T) {
	src := NewBinanceSource("XAUUSDT", time.Minute, logging.NewNopLogger())

	_, err := src.NextPrice(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)

	src.onBookTicker(&futures.WsBookTickerEvent{BestBidPrice: "bad", BestAskPrice: "1"})
	_, err = src.NextPrice(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)

	src.onBookTicker(&futures.WsBookTickerEvent{BestBidPrice: "3299.90", BestAskPrice: "3300.10"})
	px, err := src.NextPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3300.0, px, 1e-9)
}

func TestBinanceSource_RunStopsOnCancel(t *testing.T) {
	src := NewBinanceSource("XAUUSDT", time.Minute, logging.NewNopLogger())

	doneC := make(chan struct{})
	stopC := make(chan struct{})
	src.serve = func(symbol string, handler futures.WsBookTickerHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error) {
		assert.Equal(t, "XAUUSDT", symbol)
		go func() {
			handler(&futures.WsBookTickerEvent{BestBidPrice: "1.0", BestAskPrice: "3.0"})
			<-stopC
			close(doneC)
		}()
		return doneC, stopC, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() { errC <- src.Run(ctx) }()

	require.Eventually(t, func() bool {
		px, err := src.NextPrice(context.Background())
		return err == nil && px == 2.0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
