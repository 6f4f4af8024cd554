// Package api serves the read-only engine status routes.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"SuperAlgo/internal/domain/models"
	"SuperAlgo/internal/service/ratelimit"
	xhttp "SuperAlgo/pkg/http"
	applogger "SuperAlgo/pkg/logger"
)

type StateReader interface {
	States() []models.SymbolState
	State(symbol string) (models.SymbolState, bool)
}

type GuardReader interface {
	Snapshot() models.GuardState
	Limit() float64
	EntriesAllowed() bool
}

// StreamStatus is the optional live price feed.
type StreamStatus interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Mode           string    `json:"mode"`
	Symbols        int       `json:"symbols"`
	StreamEnabled  bool      `json:"stream_enabled"`
	StreamUp       bool      `json:"stream_connected"`
	EntriesAllowed bool      `json:"entries_allowed"`
	Time           time.Time `json:"time"`
}

type RiskResponse struct {
	models.GuardState
	Limit          float64 `json:"limit"`
	EntriesAllowed bool    `json:"entries_allowed"`
}

type StatusHandler struct {
	mode   string
	states StateReader
	guard  GuardReader
	stream StreamStatus
	rl     *ratelimit.Limiter
	log    *applogger.Logger
	now    func() time.Time
}

// NewStatusHandler builds the handler; stream may be nil when no feed is
// configured.
func NewStatusHandler(mode string, states StateReader, guard GuardReader, stream StreamStatus, log *applogger.Logger) *StatusHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &StatusHandler{
		mode:   mode,
		states: states,
		guard:  guard,
		stream: stream,
		rl:     ratelimit.New(20, 10),
		log:    log,
		now:    time.Now,
	}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.limit)
	g.GET("/health", h.Health)
	g.GET("/symbols", h.Symbols)
	g.GET("/symbols/:symbol", h.Symbol)
	g.GET("/risk", h.Risk)
}

func (h *StatusHandler) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP()) {
			h.log.Warn("status api rate limited", applogger.String("remote", c.RealIP()))
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
		}
		return next(c)
	}
}

func (h *StatusHandler) Health(c echo.Context) error {
	res := HealthResponse{
		Status:         "ok",
		Mode:           h.mode,
		Symbols:        len(h.states.States()),
		StreamEnabled:  h.stream != nil,
		EntriesAllowed: h.guard.EntriesAllowed(),
		Time:           h.now().UTC(),
	}
	if h.stream != nil {
		res.StreamUp = h.stream.IsConnected()
		if !res.StreamUp {
			res.Status = "degraded"
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StatusHandler) Symbols(c echo.Context) error {
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	all := h.states.States()
	rows := make([]models.SymbolState, 0, len(all))
	for _, st := range all {
		if req.Status == "ALL" || string(st.Status) == req.Status {
			rows = append(rows, st)
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusHandler) Symbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	st, ok := h.states.State(symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("symbol %s is not tracked", symbol).WithParam("symbol", symbol))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *StatusHandler) Risk(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, RiskResponse{
		GuardState:     h.guard.Snapshot(),
		Limit:          h.guard.Limit(),
		EntriesAllowed: h.guard.EntriesAllowed(),
	})
}
