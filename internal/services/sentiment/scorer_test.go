package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func scoreServer(t *testing.T, body string, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCombinedAveragesSources(t *testing.T) {
	tw := scoreServer(t, `{"score":0.6}`, http.StatusOK, nil)
	rd := scoreServer(t, `{"score":-0.2}`, http.StatusOK, nil)

	c := NewCombined([]Source{{Name: "twitter", URL: tw.URL}, {Name: "reddit", URL: rd.URL}}, time.Second)
	got := c.Score(context.Background())
	if diff := got - 0.2; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score = %v, want 0.2", got)
	}
}

func TestFailingSourceDegradesToZero(t *testing.T) {
	tw := scoreServer(t, `{"score":0.8}`, http.StatusOK, nil)
	rd := scoreServer(t, `oops`, http.StatusBadGateway, nil)

	c := NewCombined([]Source{{Name: "twitter", URL: tw.URL}, {Name: "reddit", URL: rd.URL}}, time.Second)
	if got := c.Score(context.Background()); got != 0.4 {
		t.Fatalf("score = %v, want 0.4", got)
	}
}

func TestScoresAreClampedAndCached(t *testing.T) {
	var hits int32
	src := scoreServer(t, `{"score":3}`, http.StatusOK, &hits)

	c := NewCombined([]Source{{Name: "hot", URL: src.URL}}, time.Second, WithCacheTTL(time.Hour))
	for i := 0; i < 3; i++ {
		if got := c.Score(context.Background()); got != 1 {
			t.Fatalf("score = %v, want clamp to 1", got)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}
}

func TestNoSourcesIsNeutral(t *testing.T) {
	if got := NewCombined(nil, time.Second).Score(context.Background()); got != 0 {
		t.Fatalf("score = %v", got)
	}
	if got := (Neutral{}).Score(context.Background()); got != 0 {
		t.Fatalf("neutral = %v", got)
	}
}
