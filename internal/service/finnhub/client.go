package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	applogger "SuperAlgo/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a PriceStream backed by the Finnhub trade WebSocket.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a new Finnhub PriceStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Client {
	if log == nil {
		log = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("finnhub connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("finnhub not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.log.Debug("finnhub subscribed", applogger.String("symbol", s))
	}
	return nil
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// decode turns one frame into ticks. Non-trade frames yield nothing.
func decode(b []byte) []models.PriceTick {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return nil
	}
	out := make([]models.PriceTick, 0, len(m.Data))
	for _, d := range m.Data {
		out = append(out, models.PriceTick{
			Symbol:    d.S,
			Price:     d.P,
			Volume:    d.V,
			Timestamp: time.UnixMilli(d.T).UTC(),
		})
	}
	return out
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Read streams ticks and errors. Both channels close when the read loop
// exits; call Reconnect and Read again to resume.
func (c *Client) Read(ctx context.Context) (<-chan models.PriceTick, <-chan error) {
	ticks := make(chan models.PriceTick, 1024)
	errc := make(chan error, 1)
	conn := c.current()
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.conn == conn && conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
				c.mu.Unlock()
			}
		}
	}()

	go func() {
		defer close(done)
		defer close(ticks)
		defer close(errc)
		if conn == nil {
			errc <- fmt.Errorf("finnhub conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errc <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			for _, t := range decode(b) {
				select {
				case ticks <- t:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errc
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.PriceStream = (*Client)(nil)
