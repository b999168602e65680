package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Journal is the append-only trade record store
// ⭐ SSOT: 체결 기록은 Append만 허용
type Journal interface {
	Append(ctx context.Context, rec contracts.TradeRecord) error
	// Between returns records with from <= timestamp < to, oldest first
	Between(ctx context.Context, from, to time.Time) ([]contracts.TradeRecord, error)
}

// Memory is an in-process journal used when no database is configured
type Memory struct {
	mu      sync.RWMutex
	records []contracts.TradeRecord
}

// NewMemory creates an empty in-memory journal
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Journal
func (m *Memory) Append(_ context.Context, rec contracts.TradeRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Between implements Journal
func (m *Memory) Between(_ context.Context, from, to time.Time) ([]contracts.TradeRecord, error) {
	m.mu.RLock()
	out := make([]contracts.TradeRecord, 0)
	for _, r := range m.records {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Len returns the number of records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func validate(rec contracts.TradeRecord) error {
	if rec.ID == "" || rec.Symbol == "" {
		return fmt.Errorf("trade record requires id and symbol")
	}
	if rec.Quantity <= 0 || rec.Price <= 0 {
		return fmt.Errorf("trade record %s: invalid qty=%d price=%.4f", rec.ID, rec.Quantity, rec.Price)
	}
	if rec.Action != contracts.ActionBuy && rec.Action != contracts.ActionSell {
		return fmt.Errorf("trade record %s: action %q not journaled", rec.ID, rec.Action)
	}
	return nil
}
