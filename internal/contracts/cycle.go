package contracts

import "time"

// Phase is a state of the trading cycle state machine
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseSelecting Phase = "SELECTING"
	PhaseFetching  Phase = "FETCHING"
	PhaseDeciding  Phase = "DECIDING"
	PhaseExecuting Phase = "EXECUTING"
	PhaseNotifying Phase = "NOTIFYING"
)

// CycleStatus is the snapshot served by the status surface
type CycleStatus struct {
	IsRunning      bool      `json:"is_running"`
	Stopped        bool      `json:"stopped"`
	Phase          Phase     `json:"phase"`
	LastCycleTime  time.Time `json:"last_cycle_time"`
	LastCycleID    string    `json:"last_cycle_id,omitempty"`
	TradesToday    int       `json:"trades_today"`
	PositionsCount int       `json:"positions_count"`
	MarketOpen     bool      `json:"market_open"`
	LastError      string    `json:"last_error,omitempty"`
}

// SelectionStatus is the latest selection served by the status surface
type SelectionStatus struct {
	SelectedSymbols   []string         `json:"selected_symbols"`
	LastSelectionTime time.Time        `json:"last_selection_time"`
	Candidates        []CandidateScore `json:"candidates,omitempty"`
}

// SymbolOutcome summarizes what happened to one symbol in a cycle
type SymbolOutcome struct {
	Symbol   string    `json:"symbol"`
	Stage    Phase     `json:"stage"`
	Decision *Decision `json:"decision,omitempty"`
	Fill     *Fill     `json:"fill,omitempty"`
	Skipped  string    `json:"skipped,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// CycleResult is returned by one full traversal of the state machine
type CycleResult struct {
	CycleID      string          `json:"cycle_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	MarketClosed bool            `json:"market_closed"`
	Selected     []string        `json:"selected"`
	Outcomes     []SymbolOutcome `json:"outcomes"`
	TradeCount   int             `json:"trade_count"`
}

// Duration returns the wall time the cycle took
func (r *CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
