package marketdata

import (
	"context"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Source is one fallback tier of market data.
// Fetch returns the latest quote plus up to `bars` daily bars, oldest first.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error)
}

// Name returns the tier name
func (s SourceFunc) Name() string { return s.SourceName }

// Fetch calls the wrapped function
func (s SourceFunc) Fetch(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error) {
	return s.Fn(ctx, symbol, bars)
}
