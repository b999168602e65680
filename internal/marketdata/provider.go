package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Tier binds a source to its own timeout and optional limiter
type Tier struct {
	Source  Source
	Timeout time.Duration
	Limiter *rate.Limiter
}

// Config controls the provider
type Config struct {
	Window  int // 조회할 일봉 개수
	Workers int // FetchMany 동시 요청 수
}

// DefaultConfig returns the provider defaults
func DefaultConfig() Config {
	return Config{Window: 50, Workers: 4}
}

// Provider walks its tiers in priority order and returns the first valid snapshot
// ⭐ SSOT: 시세 조회는 이 Provider를 통해서만
type Provider struct {
	tiers   []Tier
	cfg     Config
	cache   *QuoteCache
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewProvider creates a provider over tiers, highest priority first
func NewProvider(tiers []Tier, cfg Config, cache *QuoteCache, rec *metrics.Recorder, log *logger.Logger) *Provider {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Provider{
		tiers:   tiers,
		cfg:     cfg,
		cache:   cache,
		metrics: rec,
		logger:  log.WithComponent("marketdata"),
	}
}

// TierNames returns tier names in priority order
func (p *Provider) TierNames() []string {
	names := make([]string, len(p.tiers))
	for i, t := range p.tiers {
		names[i] = t.Source.Name()
	}
	return names
}

// FetchQuote returns only the quote part of FetchSnapshot
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	snap, err := p.FetchSnapshot(ctx, symbol)
	if err != nil {
		return contracts.Quote{}, err
	}
	return snap.Quote, nil
}

// FetchSnapshot tries every tier in order and tags the answer with its source.
// All tiers failing yields an error wrapping contracts.ErrDataUnavailable.
func (p *Provider) FetchSnapshot(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	var errs error
	for _, tier := range p.tiers {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}

		name := tier.Source.Name()
		start := time.Now()
		snap, err := p.fetchTier(ctx, tier, symbol)
		p.metrics.RecordFetch(name, err == nil, time.Since(start))

		if err != nil {
			p.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"source": name,
				"error":  err.Error(),
			}).Warn("Data tier failed, trying next")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		snap.Quote.Symbol = symbol
		snap.Quote.Source = name
		if p.cache != nil {
			p.cache.Update(snap.Quote)
		}
		return snap, nil
	}

	return nil, fmt.Errorf("%s: %w: %v", symbol, contracts.ErrDataUnavailable, errs)
}

// fetchTier runs one source under its own deadline.
// 컨텍스트를 무시하는 SDK도 있어서 goroutine + select로 타임아웃을 보장한다.
func (p *Provider) fetchTier(ctx context.Context, tier Tier, symbol string) (*contracts.MarketSnapshot, error) {
	if tier.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tier.Timeout)
		defer cancel()
	}

	if tier.Limiter != nil {
		if err := tier.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	type result struct {
		snap *contracts.MarketSnapshot
		err  error
	}
	done := make(chan result, 1)

	go func() {
		snap, err := tier.Source.Fetch(ctx, symbol, p.cfg.Window)
		done <- result{snap, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if err := r.snap.Validate(); err != nil {
			return nil, err
		}
		if len(r.snap.Bars) > p.cfg.Window {
			r.snap.Bars = r.snap.Bars[len(r.snap.Bars)-p.cfg.Window:]
		}
		return r.snap, nil
	}
}

// FetchResult is one symbol's outcome in FetchMany
type FetchResult struct {
	Symbol   string
	Snapshot *contracts.MarketSnapshot
	Err      error
}

// FetchMany fetches symbols over a bounded worker pool.
// Results come back in input order regardless of completion order.
func (p *Provider) FetchMany(ctx context.Context, symbols []string) []FetchResult {
	results := make([]FetchResult, len(symbols))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := p.cfg.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				snap, err := p.FetchSnapshot(ctx, symbols[i])
				results[i] = FetchResult{Symbol: contracts.NormalizeSymbol(symbols[i]), Snapshot: snap, Err: err}
			}
		}()
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// SortedSymbols returns a de-duplicated, normalized, sorted copy
func SortedSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = contracts.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
