package execution

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
)

// AlpacaConfig controls order submission and fill polling
type AlpacaConfig struct {
	TimeInForce   string
	UseBrackets   bool
	PollInterval  time.Duration
	CancelTimeout time.Duration // 마감 후 주문 취소/재조회에 쓰는 별도 시간
}

// DefaultAlpacaConfig returns day orders with brackets, polling every 500ms
func DefaultAlpacaConfig() AlpacaConfig {
	return AlpacaConfig{
		TimeInForce:   "day",
		UseBrackets:   true,
		PollInterval:  500 * time.Millisecond,
		CancelTimeout: 5 * time.Second,
	}
}

// AlpacaGateway places market orders through the Alpaca trading API
type AlpacaGateway struct {
	client  *httputil.Client
	baseURL string
	cfg     AlpacaConfig
	logger  *logger.Logger
}

// NewAlpacaGateway creates the live gateway. client must carry the APCA key headers.
func NewAlpacaGateway(client *httputil.Client, baseURL string, cfg AlpacaConfig, log *logger.Logger) *AlpacaGateway {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultAlpacaConfig().PollInterval
	}
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = DefaultAlpacaConfig().CancelTimeout
	}
	return &AlpacaGateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		logger:  log.WithComponent("execution.alpaca"),
	}
}

// Name returns the gateway name
func (g *AlpacaGateway) Name() string { return "alpaca" }

type alpacaLeg struct {
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
}

type alpacaOrderRequest struct {
	Symbol      string     `json:"symbol"`
	Qty         string     `json:"qty"`
	Side        string     `json:"side"`
	Type        string     `json:"type"`
	TimeInForce string     `json:"time_in_force"`
	OrderClass  string     `json:"order_class,omitempty"`
	TakeProfit  *alpacaLeg `json:"take_profit,omitempty"`
	StopLoss    *alpacaLeg `json:"stop_loss,omitempty"`
}

type alpacaOrder struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Status         string     `json:"status"`
	Side           string     `json:"side"`
	FilledQty      string     `json:"filled_qty"`
	FilledAvgPrice *string    `json:"filled_avg_price"`
	FilledAt       *time.Time `json:"filled_at"`
}

// Submit places the order and waits for a fill until ctx expires
func (g *AlpacaGateway) Submit(ctx context.Context, order contracts.OrderRequest) (contracts.Fill, error) {
	req := g.buildRequest(order)

	var placed alpacaOrder
	if err := g.client.SendJSON(ctx, g.baseURL+"/v2/orders", req, &placed); err != nil {
		return contracts.Fill{}, fmt.Errorf("alpaca submit %s %s: %v: %w", order.Side, order.Symbol, err, contracts.ErrExecutionFailure)
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": order.Quantity,
		"order_id": placed.ID,
		"status":   placed.Status,
		"bracket":  req.OrderClass == "bracket",
	}).Info("Alpaca order submitted")

	return g.awaitFill(ctx, placed)
}

func (g *AlpacaGateway) buildRequest(order contracts.OrderRequest) alpacaOrderRequest {
	req := alpacaOrderRequest{
		Symbol:      order.Symbol,
		Qty:         strconv.Itoa(order.Quantity),
		Side:        strings.ToLower(string(order.Side)),
		Type:        "market",
		TimeInForce: g.cfg.TimeInForce,
	}

	// 브래킷은 신규 진입(매수)에만 붙인다
	if g.cfg.UseBrackets && order.Side == contracts.OrderSideBuy &&
		order.StopLossPrice > 0 && order.TakeProfitPrice > 0 {
		req.OrderClass = "bracket"
		req.TakeProfit = &alpacaLeg{LimitPrice: formatPrice(order.TakeProfitPrice)}
		req.StopLoss = &alpacaLeg{StopPrice: formatPrice(order.StopLossPrice)}
	}
	return req
}

// awaitFill polls the order until it is filled, rejected or ctx ends.
// At the deadline the open order is cancelled so no late fill can reach the
// broker unseen; whatever executed before the cancel is reported as the fill.
func (g *AlpacaGateway) awaitFill(ctx context.Context, o alpacaOrder) (contracts.Fill, error) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch o.Status {
		case "filled":
			return toFill(o)
		case "rejected", "canceled", "expired", "done_for_day", "stopped", "suspended":
			// 취소/만료 전에 일부 체결됐으면 그 수량만큼은 포지션에 반영
			if fill, err := toFill(o); err == nil {
				return fill, nil
			}
			return contracts.Fill{}, fmt.Errorf("alpaca order %s %s: %w", o.ID, o.Status, contracts.ErrExecutionFailure)
		}

		select {
		case <-ctx.Done():
			return g.cancelAndSettle(ctx, o)
		case <-ticker.C:
		}

		var latest alpacaOrder
		if err := g.client.GetJSON(ctx, g.orderURL(o.ID), &latest); err != nil {
			g.logger.WithField("order_id", o.ID).WithError(err).Debug("Order status poll failed")
			continue
		}
		o = latest
	}
}

// cancelAndSettle cancels an order whose deadline passed, then re-reads it
// so any quantity filled before the cancel is still reported.
func (g *AlpacaGateway) cancelAndSettle(ctx context.Context, o alpacaOrder) (contracts.Fill, error) {
	cause := ctx.Err()
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.CancelTimeout)
	defer cancel()

	log := g.logger.WithFields(map[string]interface{}{
		"order_id": o.ID,
		"symbol":   o.Symbol,
		"status":   o.Status,
	})

	// 이미 체결된 주문이면 422가 오지만 재조회로 확인된다
	if err := g.client.Delete(cctx, g.orderURL(o.ID)); err != nil {
		log.WithError(err).Warn("Order cancel failed")
	} else {
		log.Info("Order cancelled at deadline")
	}

	var latest alpacaOrder
	if err := g.client.GetJSON(cctx, g.orderURL(o.ID), &latest); err != nil {
		log.WithError(err).Warn("Order re-read after cancel failed")
	} else {
		o = latest
	}

	if fill, err := toFill(o); err == nil {
		if o.Status != "filled" {
			log.WithField("filled", fill.Quantity).Warn("Order deadline reached with partial fill")
		}
		return fill, nil
	}
	return contracts.Fill{}, fmt.Errorf("alpaca order %s not filled (%s): %v: %w", o.ID, o.Status, cause, contracts.ErrExecutionFailure)
}

func (g *AlpacaGateway) orderURL(id string) string {
	return g.baseURL + "/v2/orders/" + id
}

func toFill(o alpacaOrder) (contracts.Fill, error) {
	qty, err := strconv.ParseFloat(o.FilledQty, 64)
	if err != nil || qty <= 0 {
		return contracts.Fill{}, fmt.Errorf("alpaca order %s: no filled quantity: %w", o.ID, contracts.ErrExecutionFailure)
	}
	if o.FilledAvgPrice == nil {
		return contracts.Fill{}, fmt.Errorf("alpaca order %s: no fill price: %w", o.ID, contracts.ErrExecutionFailure)
	}
	price, err := strconv.ParseFloat(*o.FilledAvgPrice, 64)
	if err != nil || price <= 0 {
		return contracts.Fill{}, fmt.Errorf("alpaca order %s: bad fill price: %w", o.ID, contracts.ErrExecutionFailure)
	}

	ts := time.Now()
	if o.FilledAt != nil {
		ts = *o.FilledAt
	}
	side := contracts.OrderSideBuy
	if strings.EqualFold(o.Side, "sell") {
		side = contracts.OrderSideSell
	}

	return contracts.Fill{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      side,
		Price:     price,
		Quantity:  int(qty),
		Timestamp: ts,
	}, nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
