// Package websocket provides a reconnecting WebSocket reader for price streams
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/core"
	"ladderbot/pkg/telemetry"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MessageHandler handles incoming WebSocket messages
type MessageHandler func(message []byte)

// Options tune reconnect and heartbeat timing. Zero values take defaults.
type Options struct {
	ReconnectWait time.Duration
	PingInterval  time.Duration
	PingWait      time.Duration
	PongWait      time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PingWait <= 0 {
		o.PingWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	return o
}

// Client keeps a WebSocket connection open until its context ends,
// redialing after every read failure.
type Client struct {
	url     string
	handler MessageHandler
	opts    Options
	logger  core.ILogger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	wg sync.WaitGroup

	tracer      trace.Tracer
	msgCounter  metric.Int64Counter
	connCounter metric.Int64Counter
}

// NewClient creates a new WebSocket client
func NewClient(url string, handler MessageHandler, opts Options, logger core.ILogger) *Client {
	meter := telemetry.GetMeter("ws-client")
	msgCounter, _ := meter.Int64Counter("ws_messages_total",
		metric.WithDescription("Total number of WebSocket messages received"))
	connCounter, _ := meter.Int64Counter("ws_connections_total",
		metric.WithDescription("Total number of WebSocket connections initiated"))

	return &Client{
		url:         url,
		handler:     handler,
		opts:        opts.withDefaults(),
		logger:      logger.WithField("component", "ws_client"),
		tracer:      telemetry.GetTracer("ws-client"),
		msgCounter:  msgCounter,
		connCounter: connCounter,
	}
}

// Start runs the connect/read loop in the background until ctx is done
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Wait blocks until the background loop has exited
func (c *Client) Wait() {
	c.wg.Wait()
}

// Connected reports whether a connection is currently open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes a JSON message, e.g. a subscription request
func (c *Client) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	return c.conn.WriteJSON(message)
}

func (c *Client) runLoop(ctx context.Context) {
	defer c.wg.Done()
	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, c.closeConn)
	defer stop()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn("WebSocket connect failed", "url", c.url, "error", err)
		} else {
			heartbeatCtx, heartbeatCancel := context.WithCancel(ctx)
			c.wg.Add(1)
			go c.heartbeat(heartbeatCtx, conn)

			c.readLoop(ctx, conn)
			heartbeatCancel()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectWait):
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	ctx, span := c.tracer.Start(ctx, "WS Connect",
		trace.WithAttributes(attribute.String("ws.url", c.url)),
	)
	defer span.End()

	c.connCounter.Add(ctx, 1)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	pongWait := c.opts.PongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("WebSocket connected", "url", c.url)
	return conn, nil
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.opts.PingWait))
			c.mu.Unlock()
			if err != nil {
				c.closeConn()
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.closeConn()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("WebSocket read failed", "url", c.url, "error", err)
			}
			return
		}

		c.msgCounter.Add(ctx, 1)
		// any traffic proves liveness
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		if c.handler != nil {
			c.handler(message)
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
