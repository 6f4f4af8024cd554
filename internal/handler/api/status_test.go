package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"SuperAlgo/internal/domain/models"
)

type stubStates []models.SymbolState

func (s stubStates) States() []models.SymbolState { return s }

func (s stubStates) State(symbol string) (models.SymbolState, bool) {
	for _, st := range s {
		if st.Symbol == symbol {
			return st, true
		}
	}
	return models.SymbolState{}, false
}

type stubGuard struct{ st models.GuardState }

func (g stubGuard) Snapshot() models.GuardState { return g.st }
func (g stubGuard) Limit() float64              { return -100 }
func (g stubGuard) EntriesAllowed() bool        { return !g.st.Breached }

type stubStream bool

func (s stubStream) IsConnected() bool { return bool(s) }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEcho(stream StreamStatus) *echo.Echo {
	states := stubStates{
		{Symbol: "AAPL", Status: models.StatusFlat, Day: "2024-03-13"},
		{Symbol: "TSLA", Status: models.StatusLong, Quantity: 30, EntryPrice: 170, TradesToday: 1, Day: "2024-03-13"},
	}
	guard := stubGuard{st: models.GuardState{Day: "2024-03-13", CumulativePnL: -120, Breached: true}}
	e := echo.New()
	NewStatusHandler("paper", states, guard, stream, nil).RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
	}
	return rec.Code, env
}

func TestSymbolsFilter(t *testing.T) {
	e := newTestEcho(nil)

	code, env := get(t, e, "/api/symbols?status=LONG")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var list struct {
		Rows  []models.SymbolState `json:"rows"`
		Total int64                `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if list.Total != 1 || list.Rows[0].Symbol != "TSLA" {
		t.Fatalf("unexpected rows %+v", list)
	}

	_, env = get(t, e, "/api/symbols")
	_ = json.Unmarshal(env.Data, &list)
	if list.Total != 2 {
		t.Fatalf("default filter should list all, got %d", list.Total)
	}

	if code, _ := get(t, e, "/api/symbols?status=SHORT"); code != http.StatusBadRequest {
		t.Fatalf("invalid filter status = %d", code)
	}
}

func TestSymbolLookup(t *testing.T) {
	e := newTestEcho(nil)

	code, env := get(t, e, "/api/symbols/tsla")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var st models.SymbolState
	if err := json.Unmarshal(env.Data, &st); err != nil || st.Quantity != 30 {
		t.Fatalf("unexpected state %+v (%v)", st, err)
	}

	if code, _ := get(t, e, "/api/symbols/NVDA"); code != http.StatusNotFound {
		t.Fatalf("untracked symbol status = %d", code)
	}
}

func TestRiskAndHealth(t *testing.T) {
	e := newTestEcho(stubStream(false))

	_, env := get(t, e, "/api/risk")
	var risk RiskResponse
	if err := json.Unmarshal(env.Data, &risk); err != nil {
		t.Fatalf("decode risk: %v", err)
	}
	if !risk.Breached || risk.EntriesAllowed || risk.Limit != -100 || risk.CumulativePnL != -120 {
		t.Fatalf("unexpected risk %+v", risk)
	}

	_, env = get(t, e, "/api/health")
	var health HealthResponse
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "degraded" || health.Symbols != 2 || health.Mode != "paper" || !health.StreamEnabled {
		t.Fatalf("unexpected health %+v", health)
	}
}
