package execution

import (
	"math"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Planner turns a decision into a sized order
// ⭐ SSOT: 주문 수량 계산은 여기서만
type Planner struct {
	risk          contracts.RiskParams
	highConfLevel float64 // 이 미만이면 수량 절반
	logger        *logger.Logger
}

// NewPlanner creates a new sizing planner
func NewPlanner(risk contracts.RiskParams, log *logger.Logger) *Planner {
	return &Planner{risk: risk, highConfLevel: 7, logger: log.WithComponent("execution.planner")}
}

// Risk returns the planner's risk parameters
func (p *Planner) Risk() contracts.RiskParams {
	return p.risk
}

// Plan sizes an order for d at price. A non-empty reason means nothing
// should be sent.
func (p *Planner) Plan(d contracts.Decision, price float64, pos *contracts.Position) (contracts.OrderRequest, string) {
	side, ok := contracts.SideFor(d.Action)
	if !ok {
		return contracts.OrderRequest{}, "hold"
	}
	if price <= 0 {
		return contracts.OrderRequest{}, "no reference price"
	}

	order := contracts.OrderRequest{Symbol: d.Symbol, Side: side, ReferencePrice: price}

	if side == contracts.OrderSideSell {
		if pos == nil || pos.Quantity <= 0 {
			return contracts.OrderRequest{}, "no open position"
		}
		qty := pos.Quantity
		if d.Quantity > 0 && d.Quantity < qty {
			qty = d.Quantity
		}
		order.Quantity = qty
		return order, ""
	}

	if pos != nil {
		return contracts.OrderRequest{}, "position already open"
	}

	qty := d.Quantity
	if qty <= 0 {
		qty = 1
	}
	if d.Confidence < p.highConfLevel {
		qty = qty / 2
		if qty < 1 {
			qty = 1
		}
	}
	if p.risk.MaxPositionSize > 0 && price*float64(qty) > p.risk.MaxPositionSize {
		qty = int(math.Floor(p.risk.MaxPositionSize / price))
	}
	if qty <= 0 {
		p.logger.WithFields(map[string]interface{}{
			"symbol":            d.Symbol,
			"price":             price,
			"max_position_size": p.risk.MaxPositionSize,
		}).Info("Price exceeds position budget, skipping")
		return contracts.OrderRequest{}, "price exceeds max position size"
	}

	// 손절 시 손실이 거래당 위험 한도를 넘지 않도록 제한
	if limit, ok := p.risk.MaxRiskShares(price); ok && qty > limit {
		p.logger.WithFields(map[string]interface{}{
			"symbol":      d.Symbol,
			"requested":   qty,
			"limit":       limit,
			"risk_budget": p.risk.RiskBudget(),
		}).Debug("Quantity capped by risk budget")
		qty = limit
		if qty <= 0 {
			return contracts.OrderRequest{}, "risk budget below one share"
		}
	}

	order.Quantity = qty
	order.StopLossPrice = round2(p.risk.StopLoss(price))
	order.TakeProfitPrice = round2(p.risk.TakeProfit(price))
	return order, ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
