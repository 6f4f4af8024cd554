package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL, srv.URL, "key", "secret", WithFillPolling(5*time.Millisecond, 200*time.Millisecond))
}

func TestGetPositionNotFoundIsFlat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			t.Errorf("missing auth header")
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40410000,"message":"position does not exist"}`))
	}))
	defer srv.Close()

	pos, err := newTestClient(srv).GetPosition(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != nil {
		t.Fatalf("expected no position, got %+v", pos)
	}
}

func TestGetPositionParsesQuantities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/positions/AAPL" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL","qty":"7","avg_entry_price":"182.50"}`))
	}))
	defer srv.Close()

	pos, err := newTestClient(srv).GetPosition(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos == nil || pos.Quantity != 7 || pos.EntryPrice != 182.5 {
		t.Fatalf("unexpected position %+v", pos)
	}
}

func TestQueryServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetAccountCash(context.Background())
	if !errors.Is(err, errs.ErrBrokerUnavailable) {
		t.Fatalf("expected broker unavailable, got %v", err)
	}
}

func TestSubmitPollsUntilFilled(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
			var req orderReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			if req.Side != "buy" || req.Qty != "3" || req.Type != "market" || req.ClientOrderID != "cid-1" {
				t.Errorf("unexpected order body %+v", req)
			}
			_, _ = w.Write([]byte(`{"id":"o-1","status":"new"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v2/orders/o-1":
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"id":"o-1","status":"accepted"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"o-1","status":"filled","filled_qty":"3","filled_avg_price":"101.25","filled_at":"2024-03-13T15:00:00Z"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	fill, err := newTestClient(srv).SubmitMarketOrder(context.Background(), models.OrderIntent{
		ClientOrderID: "cid-1", Symbol: "AMD", Side: models.SideBuy, Quantity: 3, DecisionPrice: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.OrderID != "o-1" || fill.Quantity != 3 || fill.Price != 101.25 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if !fill.Timestamp.Equal(time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected fill time %v", fill.Timestamp)
	}
}

func TestSubmitClientErrorIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"insufficient buying power"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitMarketOrder(context.Background(), models.OrderIntent{Symbol: "AMD", Side: models.SideBuy, Quantity: 1})
	if !errors.Is(err, errs.ErrOrderRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSubmitTerminalStatusIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"o-2","status":"rejected"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitMarketOrder(context.Background(), models.OrderIntent{Symbol: "AMD", Side: models.SideSell, Quantity: 1})
	if !errors.Is(err, errs.ErrOrderRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSubmitFillTimeoutCancelsOrder(t *testing.T) {
	var cancelled int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.StoreInt32(&cancelled, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"o-3","status":"new"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, "key", "secret", WithFillPolling(5*time.Millisecond, 30*time.Millisecond))
	_, err := c.SubmitMarketOrder(context.Background(), models.OrderIntent{Symbol: "TSLA", Side: models.SideBuy, Quantity: 1})
	if !errors.Is(err, errs.ErrBrokerUnavailable) {
		t.Fatalf("expected broker unavailable, got %v", err)
	}
	if atomic.LoadInt32(&cancelled) != 1 {
		t.Fatalf("expected unfilled order to be cancelled")
	}
}

func TestSubmitOutlivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls, cancelled int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"id":"o-4","status":"accepted"}`))
		case http.MethodDelete:
			atomic.StoreInt32(&cancelled, 1)
			w.WriteHeader(http.StatusNoContent)
		default:
			// the tick is stopped after the broker has accepted the order
			cancel()
			if atomic.AddInt32(&polls, 1) < 3 {
				_, _ = w.Write([]byte(`{"id":"o-4","status":"accepted"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"o-4","status":"filled","filled_qty":"2","filled_avg_price":"50.5","filled_at":"2024-03-13T15:00:00Z"}`))
		}
	}))
	defer srv.Close()

	fill, err := newTestClient(srv).SubmitMarketOrder(ctx, models.OrderIntent{Symbol: "TSLA", Side: models.SideBuy, Quantity: 2})
	if err != nil {
		t.Fatalf("accepted order must be followed to its fill, got %v", err)
	}
	if fill.OrderID != "o-4" || fill.Quantity != 2 || fill.Price != 50.5 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if atomic.LoadInt32(&cancelled) != 0 {
		t.Fatalf("filled order must not be cancelled")
	}
}

func TestGetRecentBarsSortsAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/SPY/bars" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "2" || r.URL.Query().Get("timeframe") != "1Min" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"bars":[
			{"t":"2024-03-13T14:31:00Z","o":2,"h":2,"l":2,"c":2,"v":20},
			{"t":"2024-03-13T14:30:00Z","o":1,"h":1,"l":1,"c":1,"v":10}
		]}`))
	}))
	defer srv.Close()

	bars, err := newTestClient(srv).GetRecentBars(context.Background(), "SPY", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 || bars[0].Close != 1 || bars[1].Close != 2 {
		t.Fatalf("bars not ascending: %+v", bars)
	}
}

func TestGetRecentBarsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetRecentBars(context.Background(), "SPY", 5)
	if !errors.Is(err, errs.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
