package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
)

// CachedQuote is a last-seen quote with its age flag.
// It is for display and reference only; the provider never serves it as fresh data.
type CachedQuote struct {
	contracts.Quote
	IsStale bool `json:"is_stale"`
}

// QuoteCache keeps the most recent quote per symbol
// ⭐ SSOT: 마지막 시세 보관은 이 구조체에서만
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]contracts.Quote
	ttl    time.Duration
	now    func() time.Time
}

// NewQuoteCache creates a cache whose entries go stale after ttl
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]contracts.Quote),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Update stores q unless an entry with a newer timestamp exists
func (c *QuoteCache) Update(q contracts.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.quotes[q.Symbol]; ok && q.Timestamp.Before(existing.Timestamp) {
		return false
	}
	c.quotes[q.Symbol] = q
	return true
}

// Get returns the last quote for symbol
func (c *QuoteCache) Get(symbol string) (CachedQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[symbol]
	if !ok {
		return CachedQuote{}, false
	}
	return c.wrap(q), true
}

// All returns every cached quote sorted by symbol
func (c *QuoteCache) All() []CachedQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CachedQuote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, c.wrap(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CleanStale removes entries older than ttl and returns how many were dropped
func (c *QuoteCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for sym, q := range c.quotes {
		if c.now().Sub(q.Timestamp) > c.ttl {
			delete(c.quotes, sym)
			count++
		}
	}
	return count
}

// Len returns the number of cached symbols
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

func (c *QuoteCache) wrap(q contracts.Quote) CachedQuote {
	return CachedQuote{Quote: q, IsStale: c.now().Sub(q.Timestamp) > c.ttl}
}
