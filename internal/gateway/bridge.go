package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/core"
	apperrors "ladderbot/pkg/errors"
	pkghttp "ladderbot/pkg/http"
	"ladderbot/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// BridgeConfig describes the broker bridge endpoint and order tagging.
type BridgeConfig struct {
	Symbol       string
	Magic        int
	Comment      string
	Deviation    int
	RateLimit    float64
	RateBurst    int
	MaxFailStale time.Duration
}

type openRequest struct {
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Volume    decimal.Decimal `json:"volume"`
	TP        decimal.Decimal `json:"tp"`
	ClientID  string          `json:"client_id"`
	Magic     int             `json:"magic"`
	Comment   string          `json:"comment"`
	Deviation int             `json:"deviation"`
}

type openResponse struct {
	OrderID string          `json:"order_id"`
	Price   decimal.Decimal `json:"price"`
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
}

type closeAllRequest struct {
	Symbol   string `json:"symbol"`
	Magic    int    `json:"magic"`
	ClientID string `json:"client_id"`
}

type closeAllResponse struct {
	Closed int `json:"closed"`
	Failed int `json:"failed"`
}

// BridgeGateway routes intents to a broker bridge over HTTP:
// POST /positions and POST /positions/close_all.
type BridgeGateway struct {
	client  *pkghttp.Client
	cfg     BridgeConfig
	limiter *rate.Limiter
	logger  core.ILogger
	tracer  trace.Tracer

	mu          sync.Mutex
	lastFailure time.Time
	lastErr     error
}

func NewBridgeGateway(client *pkghttp.Client, cfg BridgeConfig, logger core.ILogger) *BridgeGateway {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.MaxFailStale <= 0 {
		cfg.MaxFailStale = time.Minute
	}
	return &BridgeGateway{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.WithField("component", "bridge_gateway"),
		tracer:  telemetry.GetTracer("bridge-gateway"),
	}
}

func (g *BridgeGateway) Name() string { return "bridge" }

func (g *BridgeGateway) OpenPosition(ctx context.Context, side core.Side, lot, tp decimal.Decimal) (core.Confirmation, error) {
	ctx, span := g.tracer.Start(ctx, "OpenPosition",
		trace.WithAttributes(
			attribute.String("symbol", g.cfg.Symbol),
			attribute.String("side", side.String()),
			attribute.String("lot", lot.String()),
		),
	)
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		return core.Confirmation{}, g.fail(fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err))
	}

	req := openRequest{
		Symbol:    g.cfg.Symbol,
		Side:      side.String(),
		Volume:    lot,
		TP:        tp,
		ClientID:  uuid.NewString(),
		Magic:     g.cfg.Magic,
		Comment:   g.cfg.Comment,
		Deviation: g.cfg.Deviation,
	}

	body, err := g.client.Post(ctx, "/positions", req)
	if err != nil {
		span.RecordError(err)
		return core.Confirmation{}, g.fail(err)
	}

	var resp openResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Confirmation{}, g.fail(fmt.Errorf("malformed open response: %w", err))
	}
	if resp.OrderID == "" {
		return core.Confirmation{}, g.fail(fmt.Errorf("%w: retcode=%d %s", apperrors.ErrOrderRejected, resp.Retcode, resp.Message))
	}

	g.logger.Debug("Position opened", "client_id", req.ClientID, "order_id", resp.OrderID, "side", req.Side)
	return core.Confirmation{
		OrderID:  resp.OrderID,
		Side:     side,
		Lot:      lot,
		Price:    resp.Price,
		TP:       tp,
		Executed: time.Now(),
	}, nil
}

func (g *BridgeGateway) CloseAll(ctx context.Context) (core.Confirmation, error) {
	ctx, span := g.tracer.Start(ctx, "CloseAll",
		trace.WithAttributes(attribute.String("symbol", g.cfg.Symbol)),
	)
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		return core.Confirmation{}, g.fail(fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err))
	}

	clientID := uuid.NewString()
	body, err := g.client.Post(ctx, "/positions/close_all", closeAllRequest{
		Symbol:   g.cfg.Symbol,
		Magic:    g.cfg.Magic,
		ClientID: clientID,
	})
	if err != nil {
		span.RecordError(err)
		return core.Confirmation{}, g.fail(err)
	}

	var resp closeAllResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Confirmation{}, g.fail(fmt.Errorf("malformed close response: %w", err))
	}
	if resp.Failed > 0 {
		return core.Confirmation{Closed: resp.Closed}, g.fail(fmt.Errorf("%d of %d positions failed to close", resp.Failed, resp.Failed+resp.Closed))
	}

	return core.Confirmation{
		OrderID:  clientID,
		Closed:   resp.Closed,
		Executed: time.Now(),
	}, nil
}

// CheckHealth reports the last failure while it is recent.
func (g *BridgeGateway) CheckHealth() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastErr != nil && time.Since(g.lastFailure) < g.cfg.MaxFailStale {
		return fmt.Errorf("recent gateway failure: %w", g.lastErr)
	}
	return nil
}

func (g *BridgeGateway) fail(err error) error {
	g.mu.Lock()
	g.lastFailure = time.Now()
	g.lastErr = err
	g.mu.Unlock()
	return fmt.Errorf("%w: %w", apperrors.ErrGatewayFailure, err)
}
