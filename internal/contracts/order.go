package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Action is the judgment returned by a decision advisor
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction accepts buy/sell/hold in any case
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell, ActionHold:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Decision is a per-candidate, per-cycle judgment
type Decision struct {
	Symbol     string  `json:"symbol"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"` // 0~10
	Quantity   int     `json:"quantity"`
	Rationale  string  `json:"rationale"`
}

// Hold builds the degraded decision used when an advisor fails
func Hold(symbol, rationale string) Decision {
	return Decision{Symbol: symbol, Action: ActionHold, Rationale: rationale}
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// SideFor maps an actionable decision to an order side
func SideFor(a Action) (OrderSide, bool) {
	switch a {
	case ActionBuy:
		return OrderSideBuy, true
	case ActionSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

// OrderRequest is what the orchestrator hands to an execution gateway
type OrderRequest struct {
	Symbol          string    `json:"symbol"`
	Side            OrderSide `json:"side"`
	Quantity        int       `json:"quantity"`
	StopLossPrice   float64   `json:"stop_loss_price,omitempty"`
	TakeProfitPrice float64   `json:"take_profit_price,omitempty"`
	ReferencePrice  float64   `json:"reference_price,omitempty"`
}

// Fill is a broker confirmation; the only thing allowed to move positions
type Fill struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Notional returns price × quantity
func (f Fill) Notional() float64 {
	return f.Price * float64(f.Quantity)
}
