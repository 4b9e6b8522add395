package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	apperrors "ladderbot/pkg/errors"
)

// ReplaySource plays back a fixed price series, then reports the feed as
// unavailable.
type ReplaySource struct {
	mu     sync.Mutex
	prices []float64
	next   int
}

func NewReplaySource(prices []float64) *ReplaySource {
	return &ReplaySource{prices: append([]float64(nil), prices...)}
}

// LoadReplayCSV reads prices from the named column of a CSV file with a
// header row. An empty column picks "price", falling back to the last column.
func LoadReplayCSV(path, column string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read replay header: %w", err)
	}

	idx := len(header) - 1
	if column == "" {
		column = "price"
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), column) {
			idx = i
			break
		}
	}

	var prices []float64
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		if idx >= len(rec) {
			return nil, fmt.Errorf("replay line %d: missing column %d", line, idx)
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		prices = append(prices, px)
	}

	return NewReplaySource(prices), nil
}

func (r *ReplaySource) Name() string { return "replay" }

func (r *ReplaySource) NextPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.prices) {
		return 0, fmt.Errorf("%w: replay exhausted after %d prices", apperrors.ErrFeedUnavailable, len(r.prices))
	}
	px := r.prices[r.next]
	r.next++
	return px, nil
}

// Remaining reports how many prices are left.
func (r *ReplaySource) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices) - r.next
}
