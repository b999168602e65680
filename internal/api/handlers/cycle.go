package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/orchestrator"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Controller is the cycle surface the API drives; satisfied by orchestrator.Orchestrator
type Controller interface {
	Status() contracts.CycleStatus
	Selection() contracts.SelectionStatus
	Universe() []string
	SetUniverse(symbols []string) error
	Stop()
	Resume()
	RunCycle(ctx context.Context) (*contracts.CycleResult, error)
	RefreshSelection(ctx context.Context) (contracts.SelectionStatus, error)
	SubmitSignal(ctx context.Context, d contracts.Decision) (contracts.SymbolOutcome, error)
}

// CycleHandler handles cycle status and control endpoints
// ⭐ SSOT: 사이클 제어 API 핸들러는 이 구조체에서만
type CycleHandler struct {
	ctrl   Controller
	logger *logger.Logger
}

// NewCycleHandler creates a new cycle handler
func NewCycleHandler(ctrl Controller, log *logger.Logger) *CycleHandler {
	return &CycleHandler{
		ctrl:   ctrl,
		logger: log,
	}
}

// ============================================================
// Status
// ============================================================

// GetStatus returns the cycle state
// GET /api/status
func (h *CycleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Status())
}

// GetSelection returns the latest ranked selection
// GET /api/selection
func (h *CycleHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Selection())
}

// ============================================================
// Control
// ============================================================

// Start resumes scheduled cycles
// POST /api/cycle/start
func (h *CycleHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Resume()
	respondJSON(w, http.StatusOK, h.ctrl.Status())
}

// Stop halts new cycles and new per-symbol work
// POST /api/cycle/stop
func (h *CycleHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Stop()
	respondJSON(w, http.StatusOK, h.ctrl.Status())
}

// RunNow starts one cycle in the background
// POST /api/cycle/run
func (h *CycleHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	switch {
	case st.Stopped:
		respondError(w, http.StatusConflict, contracts.ErrStopped.Error())
		return
	case st.IsRunning:
		respondError(w, http.StatusConflict, contracts.ErrCycleRunning.Error())
		return
	}

	// 요청이 끝나도 사이클은 계속
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.ctrl.RunCycle(ctx); err != nil && !errors.Is(err, contracts.ErrCycleRunning) {
			h.logger.WithError(err).Warn("Manual cycle failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// RefreshSelection reruns selection outside a cycle
// POST /api/selection/refresh
func (h *CycleHandler) RefreshSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.ctrl.RefreshSelection(r.Context())
	if err != nil {
		if errors.Is(err, contracts.ErrCycleRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to refresh selection")
		respondError(w, http.StatusInternalServerError, "Failed to refresh selection")
		return
	}
	respondJSON(w, http.StatusOK, sel)
}

// ============================================================
// Universe
// ============================================================

// UniverseRequest replaces the trading universe
type UniverseRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=500"`
}

// GetUniverse returns the current universe
// GET /api/universe
func (h *CycleHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": h.ctrl.Universe(),
	})
}

// PutUniverse replaces the universe for the next selection
// PUT /api/universe
func (h *CycleHandler) PutUniverse(w http.ResponseWriter, r *http.Request) {
	var req UniverseRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.ctrl.SetUniverse(req.Symbols); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": h.ctrl.Universe(),
	})
}

// ============================================================
// External signals
// ============================================================

// SignalRequest is an externally generated trade signal
type SignalRequest struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Action     string  `json:"action" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=10"`
	Quantity   int     `json:"quantity" validate:"gte=0"` // 0: 매수는 1주, 매도는 보유 전량
	Reason     string  `json:"reason" validate:"max=500"`
}

// SubmitSignal runs a signal through the execution path outside the cycle
// POST /api/signals
func (h *CycleHandler) SubmitSignal(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	action, err := contracts.ParseAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !orchestrator.ValidSymbol(req.Symbol) {
		respondError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	d := contracts.Decision{
		Symbol:     req.Symbol,
		Action:     action,
		Confidence: req.Confidence,
		Quantity:   req.Quantity,
		Rationale:  req.Reason,
	}

	out, err := h.ctrl.SubmitSignal(r.Context(), d)
	if err != nil {
		status := signalStatus(err)
		h.logger.WithFields(map[string]interface{}{
			"symbol": d.Symbol,
			"status": status,
		}).WithError(err).Warn("Signal rejected")
		respondJSON(w, status, map[string]interface{}{
			"error":   err.Error(),
			"outcome": out,
		})
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func signalStatus(err error) int {
	switch {
	case errors.Is(err, contracts.ErrStopped), errors.Is(err, orchestrator.ErrMarketClosed):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrExecutionFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
