// Package sentiment combines external social sentiment endpoints into one
// scalar in [-1, 1].
package sentiment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	domsvc "SuperAlgo/internal/domain/service"
	"SuperAlgo/internal/service/cache"
	applogger "SuperAlgo/pkg/logger"
)

// Source is one scoring endpoint. A GET on URL with Params as the query
// string answers {"score": x}.
type Source struct {
	Name   string
	URL    string
	Params map[string]string
}

type scoreResp struct {
	Score *float64 `json:"score"`
}

// Combined averages every source. A failing source contributes 0 rather
// than dropping out, so one outage pulls the score toward neutral.
type Combined struct {
	client  *resty.Client
	sources []Source
	ttl     time.Duration
	cache   *cache.TTLCache[float64]
	log     *applogger.Logger
}

type Option func(*Combined)

func WithCacheTTL(ttl time.Duration) Option { return func(c *Combined) { c.ttl = ttl } }

func WithLogger(l *applogger.Logger) Option { return func(c *Combined) { c.log = l } }

func WithRestyClient(rc *resty.Client) Option { return func(c *Combined) { c.client = rc } }

func NewCombined(sources []Source, timeout time.Duration, opts ...Option) *Combined {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "SuperAlgo/1.0")
	client.SetHeader("Accept", "application/json")

	c := &Combined{
		client:  client,
		sources: sources,
		ttl:     time.Minute,
		cache:   cache.NewTTLCache[float64](),
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Combined) Score(ctx context.Context) float64 {
	if len(c.sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.sources {
		sum += c.sourceScore(ctx, s)
	}
	return clamp(sum / float64(len(c.sources)))
}

func (c *Combined) sourceScore(ctx context.Context, s Source) float64 {
	if v, ok := c.cache.Get(s.Name); ok {
		return v
	}
	v, err := c.fetch(ctx, s)
	if err != nil {
		c.log.Warn("sentiment source failed", applogger.String("source", s.Name), applogger.Error(err))
		return 0
	}
	c.cache.Set(s.Name, v, c.ttl)
	return v
}

func (c *Combined) fetch(ctx context.Context, s Source) (float64, error) {
	var out scoreResp
	req := c.client.R().SetContext(ctx).SetResult(&out)
	if len(s.Params) > 0 {
		req.SetQueryParams(s.Params)
	}
	resp, err := req.Get(s.URL)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", s.Name, err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("HTTP error %d from %s", resp.StatusCode(), s.Name)
	}
	if out.Score == nil || math.IsNaN(*out.Score) {
		return 0, fmt.Errorf("%s: missing score", s.Name)
	}
	return clamp(*out.Score), nil
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Neutral always scores 0.
type Neutral struct{}

func (Neutral) Score(context.Context) float64 { return 0 }

var (
	_ domsvc.SentimentScorer = (*Combined)(nil)
	_ domsvc.SentimentScorer = Neutral{}
)
