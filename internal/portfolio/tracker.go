package portfolio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Tracker owns open positions. At most one position per symbol.
// ⭐ SSOT: 포지션 상태 변경은 Tracker를 통해서만
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]contracts.Position
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]contracts.Position)}
}

// Open records a new position from a buy fill
func (t *Tracker) Open(fill contracts.Fill, risk contracts.RiskParams) (contracts.Position, error) {
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return contracts.Position{}, fmt.Errorf("open %s: invalid fill qty=%d price=%.4f", fill.Symbol, fill.Quantity, fill.Price)
	}
	symbol := contracts.NormalizeSymbol(fill.Symbol)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[symbol]; ok {
		return contracts.Position{}, fmt.Errorf("open %s: %w", symbol, contracts.ErrPositionExists)
	}

	pos := contracts.Position{
		Symbol:          symbol,
		Quantity:        fill.Quantity,
		EntryPrice:      fill.Price,
		EntryTime:       fill.Timestamp,
		StopLossPrice:   risk.StopLoss(fill.Price),
		TakeProfitPrice: risk.TakeProfit(fill.Price),
	}
	t.positions[symbol] = pos
	return pos, nil
}

// Close reduces or removes a position from a sell fill and returns what remains.
// Selling more than held fails and leaves state unchanged.
func (t *Tracker) Close(fill contracts.Fill) (contracts.Position, error) {
	symbol := contracts.NormalizeSymbol(fill.Symbol)
	if fill.Quantity <= 0 {
		return contracts.Position{}, fmt.Errorf("close %s: invalid fill qty=%d", symbol, fill.Quantity)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[symbol]
	if !ok {
		return contracts.Position{}, fmt.Errorf("close %s: %w", symbol, contracts.ErrNoPosition)
	}
	if fill.Quantity > pos.Quantity {
		return contracts.Position{}, fmt.Errorf("close %s: sell %d > held %d: %w", symbol, fill.Quantity, pos.Quantity, contracts.ErrOversell)
	}

	pos.Quantity -= fill.Quantity
	if pos.Quantity == 0 {
		delete(t.positions, symbol)
	} else {
		t.positions[symbol] = pos
	}
	return pos, nil
}

// Get returns a copy of the open position for symbol
func (t *Tracker) Get(symbol string) (contracts.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[contracts.NormalizeSymbol(symbol)]
	return pos, ok
}

// All returns copies of every open position sorted by symbol
func (t *Tracker) All() []contracts.Position {
	t.mu.RLock()
	out := make([]contracts.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Count returns the number of open positions
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.positions)
}

// Restore replaces state with previously persisted positions
func (t *Tracker) Restore(positions []contracts.Position) error {
	next := make(map[string]contracts.Position, len(positions))
	for _, p := range positions {
		p.Symbol = contracts.NormalizeSymbol(p.Symbol)
		if p.Quantity <= 0 {
			continue
		}
		if _, dup := next[p.Symbol]; dup {
			return fmt.Errorf("restore %s: %w", p.Symbol, contracts.ErrPositionExists)
		}
		next[p.Symbol] = p
	}

	t.mu.Lock()
	t.positions = next
	t.mu.Unlock()
	return nil
}
