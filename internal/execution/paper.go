package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// PaperConfig controls simulated fills
type PaperConfig struct {
	SlippageBps int // 10 = 0.1%, 매수는 불리하게 위로, 매도는 아래로
}

// PaperGateway fills at the latest quote price with optional slippage
type PaperGateway struct {
	quotes QuoteSource
	cfg    PaperConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewPaperGateway creates a paper-trading gateway
func NewPaperGateway(quotes QuoteSource, cfg PaperConfig, log *logger.Logger) *PaperGateway {
	return &PaperGateway{quotes: quotes, cfg: cfg, logger: log.WithComponent("execution.paper"), now: time.Now}
}

// Name returns the gateway name
func (g *PaperGateway) Name() string { return "paper" }

// Submit implements Gateway
func (g *PaperGateway) Submit(ctx context.Context, order contracts.OrderRequest) (contracts.Fill, error) {
	if order.Quantity <= 0 {
		return contracts.Fill{}, fmt.Errorf("paper %s: quantity %d: %w", order.Symbol, order.Quantity, contracts.ErrExecutionFailure)
	}

	price := order.ReferencePrice
	if q, err := g.quotes.FetchQuote(ctx, order.Symbol); err == nil {
		price = q.Price
	} else if price <= 0 {
		return contracts.Fill{}, fmt.Errorf("paper %s: no price: %v: %w", order.Symbol, err, contracts.ErrExecutionFailure)
	}

	slip := float64(g.cfg.SlippageBps) / 10000
	if order.Side == contracts.OrderSideBuy {
		price *= 1 + slip
	} else {
		price *= 1 - slip
	}

	fill := contracts.Fill{
		OrderID:   "PAPER-" + uuid.NewString(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Price:     price,
		Quantity:  order.Quantity,
		Timestamp: g.now(),
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol":   fill.Symbol,
		"side":     fill.Side,
		"quantity": fill.Quantity,
		"price":    fill.Price,
	}).Info("Paper order filled")
	return fill, nil
}
