package contracts

import (
	"math"
	"time"
)

// Position is an open holding owned by the position tracker
type Position struct {
	Symbol          string    `json:"symbol"`
	Quantity        int       `json:"quantity"`
	EntryPrice      float64   `json:"entry_price"`
	EntryTime       time.Time `json:"entry_time"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
}

// UnrealizedPL returns the mark-to-market P&L at price
func (p Position) UnrealizedPL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Quantity)
}

// ReturnPct returns the percentage move from entry at price
func (p Position) ReturnPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// RiskParams are read-only risk settings used by sizing and advisors
type RiskParams struct {
	MaxPositionSize float64 `json:"max_position_size"` // 종목당 최대 금액 (USD)
	RiskPercentage  float64 `json:"risk_percentage"`   // 거래당 허용 손실 (MaxPositionSize 대비 %)
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
}

// StopLoss returns the stop price for an entry
func (r RiskParams) StopLoss(entry float64) float64 {
	return entry * (1 - r.StopLossPct/100)
}

// TakeProfit returns the take-profit price for an entry
func (r RiskParams) TakeProfit(entry float64) float64 {
	return entry * (1 + r.TakeProfitPct/100)
}

// RiskBudget returns the dollars one trade may lose at its stop
func (r RiskParams) RiskBudget() float64 {
	return r.MaxPositionSize * r.RiskPercentage / 100
}

// MaxRiskShares returns how many shares bought at price keep a stop-out
// within RiskBudget. ok is false when no risk cap is configured.
func (r RiskParams) MaxRiskShares(price float64) (shares int, ok bool) {
	perShare := price * r.StopLossPct / 100
	if r.RiskPercentage <= 0 || r.MaxPositionSize <= 0 || perShare <= 0 {
		return 0, false
	}
	return int(math.Floor(r.RiskBudget()/perShare + 1e-9)), true
}
