package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// Gateway submits orders and reports fills
// ⭐ SSOT: 브로커 연동 인터페이스는 여기서만 정의
type Gateway interface {
	Name() string
	// Submit returns a Fill only for a confirmed execution; any rejection or
	// timeout wraps contracts.ErrExecutionFailure.
	Submit(ctx context.Context, order contracts.OrderRequest) (contracts.Fill, error)
}

// QuoteSource supplies reference prices to the paper gateway
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error)
}

// New builds the gateway selected by PAPER_TRADING
func New(cfg *config.Config, quotes QuoteSource, limiter *redis.RateLimiter, log *logger.Logger) Gateway {
	if cfg.Trading.PaperTrading {
		return NewPaperGateway(quotes, PaperConfig{SlippageBps: 5}, log)
	}

	client := httputil.NewWithTimeout(log, cfg.Trading.ExecutionTimeout).
		DisableRetry().
		WithHeader("APCA-API-KEY-ID", cfg.Alpaca.APIKey).
		WithHeader("APCA-API-SECRET-KEY", cfg.Alpaca.SecretKey).
		WithRateLimiter(limiter, redis.AlpacaRateLimit)
	acfg := DefaultAlpacaConfig()
	acfg.UseBrackets = cfg.Alpaca.UseBrackets
	return NewAlpacaGateway(client, cfg.Alpaca.BaseURL, acfg, log)
}

// MockGateway fills every order at a fixed price unless told to fail
type MockGateway struct {
	mu     sync.Mutex
	prices map[string]float64
	fail   map[string]error
	orders []contracts.OrderRequest
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		prices: make(map[string]float64),
		fail:   make(map[string]error),
	}
}

// Name returns the gateway name
func (g *MockGateway) Name() string { return "mock" }

// SetPrice sets the fill price for a symbol
func (g *MockGateway) SetPrice(symbol string, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[strings.ToUpper(symbol)] = price
}

// FailWith makes every order for symbol fail with err
func (g *MockGateway) FailWith(symbol string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[strings.ToUpper(symbol)] = err
}

// Orders returns submitted orders in submission order
func (g *MockGateway) Orders() []contracts.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]contracts.OrderRequest, len(g.orders))
	copy(out, g.orders)
	return out
}

// Submit implements Gateway
func (g *MockGateway) Submit(ctx context.Context, order contracts.OrderRequest) (contracts.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.orders = append(g.orders, order)
	if err, ok := g.fail[order.Symbol]; ok {
		return contracts.Fill{}, fmt.Errorf("mock %s %s: %v: %w", order.Side, order.Symbol, err, contracts.ErrExecutionFailure)
	}
	if err := ctx.Err(); err != nil {
		return contracts.Fill{}, fmt.Errorf("mock %s: %v: %w", order.Symbol, err, contracts.ErrExecutionFailure)
	}

	price, ok := g.prices[order.Symbol]
	if !ok {
		price = order.ReferencePrice
	}
	return contracts.Fill{
		OrderID:   "MOCK-" + uuid.NewString(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Price:     price,
		Quantity:  order.Quantity,
		Timestamp: time.Now(),
	}, nil
}
