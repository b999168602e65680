package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecycle/internal/api/handlers"
	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/marketdata"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/internal/orchestrator"
	"github.com/wonny/tradecycle/internal/sector"
	"github.com/wonny/tradecycle/pkg/logger"
)

type fakeController struct {
	mu         sync.Mutex
	status     contracts.CycleStatus
	universe   []string
	cycles     int
	refreshErr error
	signalErr  error
	signals    []contracts.Decision
}

func (f *fakeController) Status() contracts.CycleStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Selection() contracts.SelectionStatus {
	return contracts.SelectionStatus{
		SelectedSymbols: []string{"AAPL"},
		Candidates:      []contracts.CandidateScore{{Symbol: "AAPL", CompositeScore: 7.4}},
	}
}

func (f *fakeController) Universe() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.universe
}

func (f *fakeController) SetUniverse(symbols []string) error {
	for _, s := range symbols {
		if !orchestrator.ValidSymbol(s) {
			return fmt.Errorf("invalid symbol %q", s)
		}
	}
	f.mu.Lock()
	f.universe = symbols
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	f.status.Stopped = true
	f.mu.Unlock()
}

func (f *fakeController) Resume() {
	f.mu.Lock()
	f.status.Stopped = false
	f.mu.Unlock()
}

func (f *fakeController) RunCycle(context.Context) (*contracts.CycleResult, error) {
	f.mu.Lock()
	f.cycles++
	f.mu.Unlock()
	return &contracts.CycleResult{}, nil
}

func (f *fakeController) RefreshSelection(context.Context) (contracts.SelectionStatus, error) {
	if f.refreshErr != nil {
		return contracts.SelectionStatus{}, f.refreshErr
	}
	return f.Selection(), nil
}

func (f *fakeController) SubmitSignal(_ context.Context, d contracts.Decision) (contracts.SymbolOutcome, error) {
	f.mu.Lock()
	f.signals = append(f.signals, d)
	f.mu.Unlock()
	return contracts.SymbolOutcome{Symbol: d.Symbol, Decision: &d}, f.signalErr
}

func (f *fakeController) cycleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycles
}

type fakePositions []contracts.Position

func (p fakePositions) All() []contracts.Position { return p }

type fakeSectors []sector.Strength

func (s fakeSectors) Strengths(context.Context) []sector.Strength { return s }

func newTestRouter(t *testing.T, ctrl *fakeController) http.Handler {
	t.Helper()
	log := logger.NewNop()

	reg := prometheus.NewRegistry()
	metrics.New(reg).RecordTrade("BUY")

	quotes := marketdata.NewQuoteCache(time.Minute)
	quotes.Update(contracts.Quote{Symbol: "MSFT", Price: 410.5, Source: "yahoo", Timestamp: time.Now()})
	quotes.Update(contracts.Quote{Symbol: "AAPL", Price: 181.2, Source: "alpaca", Timestamp: time.Now().Add(-time.Hour)})

	return NewRouter(RouterDeps{
		Cycle: handlers.NewCycleHandler(ctrl, log),
		Portfolio: handlers.NewPortfolioHandler(
			fakePositions{{Symbol: "AAPL", Quantity: 10, EntryPrice: 180}},
			fakeSectors{
				{Sector: "Energy", ETF: "XLE", Multiplier: 0.9, Available: true},
				{Sector: "Technology", ETF: "XLK", Multiplier: 1.2, Available: true},
			},
			quotes,
			log,
		),
		Gatherer: reg,
	}, log)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ReadEndpoints(t *testing.T) {
	ctrl := &fakeController{status: contracts.CycleStatus{Phase: contracts.PhaseIdle, TradesToday: 3}}
	h := newTestRouter(t, ctrl)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st contracts.CycleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 3, st.TradesToday)
	assert.Equal(t, contracts.PhaseIdle, st.Phase)

	rec = do(t, h, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sel contracts.SelectionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, []string{"AAPL"}, sel.SelectedSymbols)

	rec = do(t, h, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, h, http.MethodGet, "/api/sectors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sectors struct {
		Sectors []sector.Strength `json:"sectors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sectors))
	require.Len(t, sectors.Sectors, 2)
	assert.Equal(t, "Technology", sectors.Sectors[0].Sector)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tradecycle_trades_total")
}

func TestRouter_Quotes(t *testing.T) {
	h := newTestRouter(t, &fakeController{})

	rec := do(t, h, http.MethodGet, "/api/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all struct {
		Count  int                      `json:"count"`
		Stale  int                      `json:"stale"`
		Quotes []marketdata.CachedQuote `json:"quotes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, 1, all.Stale)
	require.Len(t, all.Quotes, 2)
	assert.Equal(t, "AAPL", all.Quotes[0].Symbol)
	assert.True(t, all.Quotes[0].IsStale)
	assert.False(t, all.Quotes[1].IsStale)

	tests := []struct {
		name  string
		path  string
		code  int
		price float64
	}{
		{"fresh", "/api/quotes/MSFT", http.StatusOK, 410.5},
		{"lowercase symbol", "/api/quotes/msft", http.StatusOK, 410.5},
		{"unknown", "/api/quotes/NVDA", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			var q marketdata.CachedQuote
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
			assert.Equal(t, tt.price, q.Price)
		})
	}
}

func TestRouter_StopStartRun(t *testing.T) {
	ctrl := &fakeController{}
	h := newTestRouter(t, ctrl)

	rec := do(t, h, http.MethodPost, "/api/cycle/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.Status().Stopped)

	rec = do(t, h, http.MethodPost, "/api/cycle/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/cycle/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctrl.Status().Stopped)

	rec = do(t, h, http.MethodPost, "/api/cycle/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return ctrl.cycleCount() == 1 }, time.Second, 10*time.Millisecond)

	ctrl.mu.Lock()
	ctrl.status.IsRunning = true
	ctrl.mu.Unlock()
	rec = do(t, h, http.MethodPost, "/api/cycle/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// GET은 허용되지 않음
	rec = do(t, h, http.MethodGet, "/api/cycle/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_RefreshSelection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"busy", contracts.ErrCycleRunning, http.StatusConflict},
		{"selector failed", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &fakeController{refreshErr: tt.err})
			rec := do(t, h, http.MethodPost, "/api/selection/refresh", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_PutUniverse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"symbols":["AAPL","BRK.B"]}`, http.StatusOK},
		{"empty", `{"symbols":[]}`, http.StatusBadRequest},
		{"bad symbol", `{"symbols":["TOOLONG"]}`, http.StatusBadRequest},
		{"unknown field", `{"tickers":["AAPL"]}`, http.StatusBadRequest},
		{"not json", `AAPL`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{universe: []string{"MSFT"}}
			h := newTestRouter(t, ctrl)

			rec := do(t, h, http.MethodPut, "/api/universe", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, []string{"AAPL", "BRK.B"}, ctrl.Universe())
			} else {
				assert.Equal(t, []string{"MSFT"}, ctrl.Universe())
			}
		})
	}
}

func TestRouter_SubmitSignal(t *testing.T) {
	execErr := &contracts.SymbolError{Symbol: "AAPL", Stage: contracts.PhaseExecuting, Err: contracts.ErrExecutionFailure}
	dataErr := &contracts.SymbolError{Symbol: "AAPL", Stage: contracts.PhaseFetching, Err: contracts.ErrDataUnavailable}

	tests := []struct {
		name      string
		body      string
		err       error
		want      int
		submitted bool
		wantQty   int
	}{
		{"accepted", `{"symbol":"aapl","action":"buy","confidence":8,"quantity":5,"reason":"breakout"}`, nil, http.StatusOK, true, 5},
		{"sell without quantity leaves sizing to the planner", `{"symbol":"AAPL","action":"SELL","confidence":8}`, nil, http.StatusOK, true, 0},
		{"partial sell", `{"symbol":"AAPL","action":"sell","confidence":8,"quantity":2}`, nil, http.StatusOK, true, 2},
		{"negative quantity", `{"symbol":"AAPL","action":"buy","confidence":8,"quantity":-1}`, nil, http.StatusBadRequest, false, 0},
		{"unknown action", `{"symbol":"AAPL","action":"short","confidence":8}`, nil, http.StatusBadRequest, false, 0},
		{"missing symbol", `{"action":"buy","confidence":8}`, nil, http.StatusBadRequest, false, 0},
		{"invalid symbol", `{"symbol":"AAPL1","action":"buy","confidence":8}`, nil, http.StatusBadRequest, false, 0},
		{"confidence out of range", `{"symbol":"AAPL","action":"buy","confidence":11}`, nil, http.StatusBadRequest, false, 0},
		{"stopped", `{"symbol":"AAPL","action":"buy","confidence":8}`, contracts.ErrStopped, http.StatusConflict, true, 0},
		{"market closed", `{"symbol":"AAPL","action":"buy","confidence":8}`, orchestrator.ErrMarketClosed, http.StatusConflict, true, 0},
		{"no data", `{"symbol":"AAPL","action":"buy","confidence":8}`, dataErr, http.StatusServiceUnavailable, true, 0},
		{"broker rejected", `{"symbol":"AAPL","action":"buy","confidence":8}`, execErr, http.StatusBadGateway, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{signalErr: tt.err}
			h := newTestRouter(t, ctrl)

			rec := do(t, h, http.MethodPost, "/api/signals", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			if !tt.submitted {
				assert.Empty(t, ctrl.signals)
				return
			}
			require.Len(t, ctrl.signals, 1)
			assert.Equal(t, tt.wantQty, ctrl.signals[0].Quantity)
		})
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	log := logger.NewNop()
	h := NewRouter(RouterDeps{
		Cycle:  handlers.NewCycleHandler(&fakeController{}, log),
		Stream: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	}, log)

	rec := do(t, h, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Portfolio 미설정 시 라우트 없음
	rec = do(t, h, http.MethodGet, "/api/positions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
