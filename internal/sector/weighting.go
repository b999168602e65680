package sector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// SnapshotFetcher reads ETF price history; satisfied by marketdata.Provider
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error)
}

// DefaultETFs maps sector names to their sector ETF
var DefaultETFs = map[string]string{
	"Technology":             "XLK",
	"Financials":             "XLF",
	"Healthcare":             "XLV",
	"Consumer Staples":       "XLP",
	"Consumer Discretionary": "XLY",
	"Industrials":            "XLI",
	"Energy":                 "XLE",
}

// Config holds sector weighting parameters
type Config struct {
	Benchmark     string
	Window        int     // 수익률 비교 구간 (봉 수)
	Sensitivity   float64 // 상대수익률 1%p 당 배수 변화 = Sensitivity / 100
	MinMultiplier float64
	MaxMultiplier float64
	CacheTTL      time.Duration
	ETFs          map[string]string // sector → ETF
	Symbols       map[string]string // symbol → sector
}

// DefaultConfig returns the sector weighting defaults
func DefaultConfig() Config {
	return Config{
		Benchmark:     "SPY",
		Window:        20,
		Sensitivity:   5.0,
		MinMultiplier: 0.8,
		MaxMultiplier: 1.3,
		CacheTTL:      redis.TTLMedium,
		ETFs:          DefaultETFs,
		Symbols:       map[string]string{},
	}
}

// Validate checks the multiplier bounds
func (c Config) Validate() error {
	if c.MinMultiplier <= 0 || c.MinMultiplier > 1 || c.MaxMultiplier < 1 {
		return fmt.Errorf("sector bounds must satisfy 0 < min <= 1 <= max, got [%.2f, %.2f]", c.MinMultiplier, c.MaxMultiplier)
	}
	if c.Window <= 0 {
		return fmt.Errorf("sector window must be positive")
	}
	if c.Benchmark == "" {
		return fmt.Errorf("sector benchmark is required")
	}
	return nil
}

// Strength is the relative performance of one sector against the benchmark
type Strength struct {
	Sector         string  `json:"sector"`
	ETF            string  `json:"etf"`
	ETFReturn      float64 `json:"etf_return"`
	RelativeReturn float64 `json:"relative_return"`
	Multiplier     float64 `json:"multiplier"`
	Available      bool    `json:"available"`
}

type cachedReturn struct {
	value   float64
	expires time.Time
}

// Weighting turns sector ETF strength into a score multiplier
// ⭐ SSOT: 섹터 가중치는 여기서만
type Weighting struct {
	cfg     Config
	fetcher SnapshotFetcher
	cache   *redis.Cache
	logger  *logger.Logger

	mu    sync.Mutex
	local map[string]cachedReturn
	now   func() time.Time
}

// NewWeighting creates a sector weighting. cache may be nil.
func NewWeighting(cfg Config, fetcher SnapshotFetcher, cache *redis.Cache, log *logger.Logger) *Weighting {
	if cfg.ETFs == nil {
		cfg.ETFs = DefaultETFs
	}
	if cfg.Symbols == nil {
		cfg.Symbols = map[string]string{}
	}
	return &Weighting{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		logger:  log.WithComponent("sector"),
		local:   make(map[string]cachedReturn),
		now:     time.Now,
	}
}

// SectorOf returns the configured sector for a symbol
func (w *Weighting) SectorOf(symbol string) string {
	return w.cfg.Symbols[contracts.NormalizeSymbol(symbol)]
}

// Multiplier returns the score multiplier for a symbol's sector.
// Unknown sectors and missing ETF data give 1.0.
func (w *Weighting) Multiplier(ctx context.Context, symbol string) float64 {
	sector := w.SectorOf(symbol)
	if sector == "" {
		return 1.0
	}
	return w.strength(ctx, sector).Multiplier
}

// Strengths reports every configured sector, sorted by sector name
func (w *Weighting) Strengths(ctx context.Context) []Strength {
	sectors := make([]string, 0, len(w.cfg.ETFs))
	for s := range w.cfg.ETFs {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	out := make([]Strength, 0, len(sectors))
	for _, s := range sectors {
		out = append(out, w.strength(ctx, s))
	}
	return out
}

func (w *Weighting) strength(ctx context.Context, sector string) Strength {
	st := Strength{Sector: sector, Multiplier: 1.0}

	etf, ok := w.cfg.ETFs[sector]
	if !ok {
		return st
	}
	st.ETF = etf
	if etf == w.cfg.Benchmark {
		st.Available = true
		return st
	}

	etfRet, err := w.trailingReturn(ctx, etf)
	if err != nil {
		w.logger.WithFields(map[string]interface{}{
			"sector": sector,
			"etf":    etf,
		}).WithError(err).Warn("Sector ETF return unavailable, using neutral multiplier")
		return st
	}
	benchRet, err := w.trailingReturn(ctx, w.cfg.Benchmark)
	if err != nil {
		w.logger.WithField("benchmark", w.cfg.Benchmark).WithError(err).Warn("Benchmark return unavailable, using neutral multiplier")
		return st
	}

	st.ETFReturn = etfRet
	st.RelativeReturn = etfRet - benchRet
	st.Multiplier = w.multiplierFor(st.RelativeReturn)
	st.Available = true
	return st
}

// multiplierFor maps a relative return (fraction) into the clamped multiplier
func (w *Weighting) multiplierFor(relative float64) float64 {
	m := 1 + w.cfg.Sensitivity*relative
	if m < w.cfg.MinMultiplier {
		return w.cfg.MinMultiplier
	}
	if m > w.cfg.MaxMultiplier {
		return w.cfg.MaxMultiplier
	}
	return m
}

// trailingReturn reads the ETF return over the window: local cache, then Redis, then the provider
func (w *Weighting) trailingReturn(ctx context.Context, etf string) (float64, error) {
	now := w.now()

	w.mu.Lock()
	if c, ok := w.local[etf]; ok && now.Before(c.expires) {
		w.mu.Unlock()
		return c.value, nil
	}
	w.mu.Unlock()

	key := redis.SectorReturnKey(etf, w.cfg.Window, now.Format("2006-01-02"))
	if w.cache != nil {
		var cached float64
		found, err := w.cache.Get(ctx, key, &cached)
		if err != nil {
			w.logger.WithError(err).Debug("Sector cache read failed")
		}
		if found {
			w.remember(etf, cached, now)
			return cached, nil
		}
	}

	snap, err := w.fetcher.FetchSnapshot(ctx, etf)
	if err != nil {
		return 0, err
	}
	closes := snap.Closes()
	if len(closes) < 2 {
		return 0, fmt.Errorf("%s: %w", etf, contracts.ErrInsufficientBars)
	}
	if len(closes) > w.cfg.Window+1 {
		closes = closes[len(closes)-w.cfg.Window-1:]
	}
	first := closes[0]
	if first <= 0 {
		return 0, fmt.Errorf("%s: %w", etf, contracts.ErrMalformedPayload)
	}
	ret := closes[len(closes)-1]/first - 1

	w.remember(etf, ret, now)
	if w.cache != nil {
		if err := w.cache.Set(ctx, key, ret, w.cfg.CacheTTL); err != nil {
			w.logger.WithError(err).Debug("Sector cache write failed")
		}
	}
	return ret, nil
}

func (w *Weighting) remember(etf string, value float64, now time.Time) {
	w.mu.Lock()
	w.local[etf] = cachedReturn{value: value, expires: now.Add(w.cfg.CacheTTL)}
	w.mu.Unlock()
}
