// Package feed provides the price sources that drive the ladder.
package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
)

// RandomWalk is the synthetic feed: each call moves the price by a uniform
// step in [-maxStep, +maxStep], rounded to cents.
type RandomWalk struct {
	mu      sync.Mutex
	price   float64
	maxStep float64
	rng     *rand.Rand
}

func NewRandomWalk(start, maxStep float64, seed int64) *RandomWalk {
	return &RandomWalk{
		price:   start,
		maxStep: maxStep,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (w *RandomWalk) Name() string { return "sim" }

func (w *RandomWalk) NextPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	step := (w.rng.Float64()*2 - 1) * w.maxStep
	w.price = math.Round((w.price+step)*100) / 100
	return w.price, nil
}
