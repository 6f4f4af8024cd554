// Package alpaca implements the Broker and MarketData boundaries over the
// Alpaca v2 REST API.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	"SuperAlgo/internal/service/ratelimit"
	xhttp "SuperAlgo/pkg/http"
	applogger "SuperAlgo/pkg/logger"
	"SuperAlgo/pkg/util"
)

type Option func(*Client)

func WithHTTPClient(c *xhttp.Client) Option { return func(a *Client) { a.http = c } }

func WithRateLimiter(l *ratelimit.Limiter) Option { return func(a *Client) { a.limiter = l } }

// WithFillPolling sets how often and for how long a submitted order is polled.
func WithFillPolling(interval, timeout time.Duration) Option {
	return func(a *Client) {
		if interval > 0 {
			a.pollInterval = interval
		}
		if timeout > 0 {
			a.fillTimeout = timeout
		}
	}
}

func WithTimeframe(tf drepo.Timeframe) Option { return func(a *Client) { a.timeframe = tf } }

// WithFeed selects the market data feed (iex or sip).
func WithFeed(feed string) Option { return func(a *Client) { a.feed = feed } }

func WithLogger(l *applogger.Logger) Option { return func(a *Client) { a.log = l } }

type Client struct {
	tradingURL   string
	dataURL      string
	keyID        string
	secret       string
	http         *xhttp.Client
	limiter      *ratelimit.Limiter
	timeframe    drepo.Timeframe
	feed         string
	pollInterval time.Duration
	fillTimeout  time.Duration
	log          *applogger.Logger
}

func New(tradingURL, dataURL, keyID, secret string, opts ...Option) *Client {
	c := &Client{
		tradingURL:   strings.TrimRight(tradingURL, "/"),
		dataURL:      strings.TrimRight(dataURL, "/"),
		keyID:        keyID,
		secret:       secret,
		timeframe:    drepo.TF1Min,
		feed:         "iex",
		pollInterval: 500 * time.Millisecond,
		fillTimeout:  20 * time.Second,
		log:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	return c
}

type positionDTO struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
}

type accountDTO struct {
	Cash   string `json:"cash"`
	Status string `json:"status"`
}

type orderReq struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type orderDTO struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"client_order_id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	FilledAt       string `json:"filled_at"`
}

type barDTO struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type barsDTO struct {
	Bars []barDTO `json:"bars"`
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     c.keyID,
		"APCA-API-SECRET-KEY": c.secret,
		"Accept":              "application/json",
	}
}

func (c *Client) do(ctx context.Context, bucket, method, rawURL string, query map[string][]string, body, dest interface{}) error {
	if err := c.limiter.Wait(ctx, bucket); err != nil {
		return err
	}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      method,
		URL:         rawURL,
		Headers:     c.headers(),
		QueryParams: query,
		Body:        body,
	}, dest)
}

// classify maps a transport/status error onto the broker taxonomy. 4xx is a
// rejection only for order submission; on queries it means the broker
// cannot answer.
func classify(op string, err error, submit bool) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && !se.Temporary() && submit {
		return fmt.Errorf("%s: %v: %w", op, err, errs.ErrOrderRejected)
	}
	return fmt.Errorf("%s: %v: %w", op, err, errs.ErrBrokerUnavailable)
}

func isNotFound(err error) bool {
	var se *xhttp.StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	var p positionDTO
	err := c.do(ctx, "trading", xhttp.MethodGet, c.tradingURL+"/v2/positions/"+url.PathEscape(symbol), nil, nil, &p)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify("get position "+symbol, err, false)
	}
	qty, err := decimal.NewFromString(p.Qty)
	if err != nil {
		return nil, fmt.Errorf("position %s qty %q: %v: %w", symbol, p.Qty, err, errs.ErrBrokerUnavailable)
	}
	entry, err := decimal.NewFromString(p.AvgEntryPrice)
	if err != nil {
		return nil, fmt.Errorf("position %s entry %q: %v: %w", symbol, p.AvgEntryPrice, err, errs.ErrBrokerUnavailable)
	}
	if qty.IsZero() {
		return nil, nil
	}
	return &models.Position{Symbol: symbol, Quantity: qty.IntPart(), EntryPrice: entry.InexactFloat64()}, nil
}

func (c *Client) GetAccountCash(ctx context.Context) (decimal.Decimal, error) {
	var a accountDTO
	if err := c.do(ctx, "trading", xhttp.MethodGet, c.tradingURL+"/v2/account", nil, nil, &a); err != nil {
		return decimal.Zero, classify("get account", err, false)
	}
	cash, err := decimal.NewFromString(a.Cash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account cash %q: %v: %w", a.Cash, err, errs.ErrBrokerUnavailable)
	}
	return cash, nil
}

// SubmitMarketOrder places the order once and polls it until it fills. Once
// the broker accepts the order, polling ignores ctx cancellation and is
// bounded by the fill timeout only. A poll timeout cancels the order on a
// best-effort basis and reports the broker as unavailable.
func (c *Client) SubmitMarketOrder(ctx context.Context, intent models.OrderIntent) (models.Fill, error) {
	req := orderReq{
		Symbol:        intent.Symbol,
		Qty:           strconv.FormatInt(intent.Quantity, 10),
		Side:          strings.ToLower(string(intent.Side)),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: intent.ClientOrderID,
	}
	var o orderDTO
	if err := c.do(ctx, "trading", xhttp.MethodPost, c.tradingURL+"/v2/orders", nil, req, &o); err != nil {
		return models.Fill{}, classify("submit order "+intent.Symbol, err, true)
	}

	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fillTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		switch o.Status {
		case "filled":
			return c.toFill(o)
		case "rejected", "canceled", "expired", "suspended", "stopped":
			return models.Fill{}, fmt.Errorf("order %s %s: %w", o.ID, o.Status, errs.ErrOrderRejected)
		}
		select {
		case <-pollCtx.Done():
			c.cancelOrder(o.ID)
			return models.Fill{}, fmt.Errorf("order %s not filled (last status %s): %v: %w", o.ID, o.Status, pollCtx.Err(), errs.ErrBrokerUnavailable)
		case <-ticker.C:
		}
		var next orderDTO
		if err := c.do(pollCtx, "trading", xhttp.MethodGet, c.tradingURL+"/v2/orders/"+url.PathEscape(o.ID), nil, nil, &next); err != nil {
			c.log.Warn("order poll failed", applogger.String("order_id", o.ID), applogger.Error(err))
			continue
		}
		o = next
	}
}

func (c *Client) cancelOrder(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.do(ctx, "trading", xhttp.MethodDelete, c.tradingURL+"/v2/orders/"+url.PathEscape(id), nil, nil, nil); err != nil {
		c.log.Error("cancel unfilled order failed", applogger.String("order_id", id), applogger.Error(err))
	}
}

func (c *Client) toFill(o orderDTO) (models.Fill, error) {
	qty, err := decimal.NewFromString(o.FilledQty)
	if err != nil {
		return models.Fill{}, fmt.Errorf("order %s filled_qty %q: %v: %w", o.ID, o.FilledQty, err, errs.ErrBrokerUnavailable)
	}
	price, err := decimal.NewFromString(o.FilledAvgPrice)
	if err != nil {
		return models.Fill{}, fmt.Errorf("order %s filled_avg_price %q: %v: %w", o.ID, o.FilledAvgPrice, err, errs.ErrBrokerUnavailable)
	}
	at := util.ParseTimeDefault(o.FilledAt, time.Now().UTC())
	return models.Fill{
		OrderID:   o.ID,
		Price:     price.InexactFloat64(),
		Quantity:  qty.IntPart(),
		Timestamp: at,
	}, nil
}

// GetRecentBars returns up to count most recent bars, oldest first.
func (c *Client) GetRecentBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	if count <= 0 {
		return nil, nil
	}
	q := map[string][]string{
		"timeframe": {string(c.timeframe)},
		"limit":     {strconv.Itoa(count)},
		"sort":      {"desc"},
		"feed":      {c.feed},
		// look back far enough to span overnight and weekend gaps
		"start": {time.Now().UTC().Add(-4 * 24 * time.Hour).Format(time.RFC3339)},
	}
	var resp barsDTO
	if err := c.do(ctx, "data", xhttp.MethodGet, c.dataURL+"/v2/stocks/"+url.PathEscape(symbol)+"/bars", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("bars %s: %v: %w", symbol, err, errs.ErrUpstream)
	}
	bars := make([]models.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		ts, ok := util.ParseTime(b.T)
		if !ok {
			continue
		}
		bars = append(bars, models.Bar{Timestamp: ts, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

var (
	_ drepo.Broker     = (*Client)(nil)
	_ drepo.MarketData = (*Client)(nil)
)
