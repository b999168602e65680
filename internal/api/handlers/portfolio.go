package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/marketdata"
	"github.com/wonny/tradecycle/internal/sector"
	"github.com/wonny/tradecycle/pkg/logger"
)

// PositionLister lists open positions; satisfied by portfolio.Tracker
type PositionLister interface {
	All() []contracts.Position
}

// SectorReader reports sector strength; satisfied by sector.Weighting
type SectorReader interface {
	Strengths(ctx context.Context) []sector.Strength
}

// QuoteReader exposes last-seen quotes; satisfied by marketdata.QuoteCache
type QuoteReader interface {
	Get(symbol string) (marketdata.CachedQuote, bool)
	All() []marketdata.CachedQuote
}

// PortfolioHandler serves positions, last quotes and sector analysis
type PortfolioHandler struct {
	positions PositionLister
	sectors   SectorReader
	quotes    QuoteReader
	logger    *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler. sectors and quotes may be nil.
func NewPortfolioHandler(positions PositionLister, sectors SectorReader, quotes QuoteReader, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		positions: positions,
		sectors:   sectors,
		quotes:    quotes,
		logger:    log,
	}
}

// GetPositions returns open positions
// GET /api/positions
func (h *PortfolioHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positions.All()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(positions),
		"positions": positions,
	})
}

// GetSectors returns sector multipliers, strongest first
// GET /api/sectors
func (h *PortfolioHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	if h.sectors == nil {
		respondError(w, http.StatusServiceUnavailable, "sector weighting not configured")
		return
	}

	strengths := h.sectors.Strengths(r.Context())
	sort.SliceStable(strengths, func(i, j int) bool {
		return strengths[i].Multiplier > strengths[j].Multiplier
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sectors": strengths,
	})
}

// GetQuotes returns every cached quote with its staleness flag.
// 표시용 값이며 매매 판단에는 쓰지 않음
// GET /api/quotes
func (h *PortfolioHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		respondError(w, http.StatusServiceUnavailable, "quote cache not configured")
		return
	}

	quotes := h.quotes.All()
	stale := 0
	for _, q := range quotes {
		if q.IsStale {
			stale++
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(quotes),
		"stale":  stale,
		"quotes": quotes,
	})
}

// GetQuote returns the cached quote for one symbol
// GET /api/quotes/{symbol}
func (h *PortfolioHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		respondError(w, http.StatusServiceUnavailable, "quote cache not configured")
		return
	}

	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])
	q, ok := h.quotes.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "no cached quote for "+symbol)
		return
	}
	respondJSON(w, http.StatusOK, q)
}
