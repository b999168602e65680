package selection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/marketdata"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/internal/sentiment"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Fetcher fetches snapshots for a universe; satisfied by marketdata.Provider
type Fetcher interface {
	FetchMany(ctx context.Context, symbols []string) []marketdata.FetchResult
}

// Evaluator computes technical scores; satisfied by signals.Evaluator
type Evaluator interface {
	Evaluate(symbol string, bars []contracts.Bar) (contracts.TechnicalScore, error)
}

// SectorWeigher resolves sector multipliers; satisfied by sector.Weighting
type SectorWeigher interface {
	Multiplier(ctx context.Context, symbol string) float64
	SectorOf(symbol string) string
}

// Store persists selection runs
type Store interface {
	SaveSelection(ctx context.Context, at time.Time, candidates []contracts.CandidateScore) error
}

// Config controls the selector
type Config struct {
	TopK             int // 감성 분석 대상 수
	SentimentWorkers int
	SentimentTimeout time.Duration
	Weights          WeightConfig
	Liquidity        LiquidityConfig
}

// DefaultConfig returns the selector defaults
func DefaultConfig() Config {
	return Config{
		TopK:             10,
		SentimentWorkers: 4,
		SentimentTimeout: 10 * time.Second,
		Weights:          DefaultWeightConfig(),
	}
}

// Deps are the selector collaborators. Store and Metrics are optional.
type Deps struct {
	Fetcher   Fetcher
	Evaluator Evaluator
	Sector    SectorWeigher
	Sentiment sentiment.Advisor
	Schedule  *Schedule
	Store     Store
	Metrics   *metrics.Recorder
}

// Selector ranks a universe by composite score
// ⭐ SSOT: 종목 선정 파이프라인은 여기서만
type Selector struct {
	cfg      Config
	deps     Deps
	screener *Screener
	logger   *logger.Logger
}

// NewSelector validates config and creates a selector
func NewSelector(cfg Config, deps Deps, log *logger.Logger) (*Selector, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if deps.Fetcher == nil || deps.Evaluator == nil || deps.Sector == nil || deps.Schedule == nil {
		return nil, fmt.Errorf("selector requires fetcher, evaluator, sector weighting and schedule")
	}
	if deps.Sentiment == nil {
		deps.Sentiment = sentiment.NeutralAdvisor{}
	}
	if cfg.TopK < 0 {
		cfg.TopK = 0
	}
	if cfg.SentimentWorkers <= 0 {
		cfg.SentimentWorkers = 1
	}
	if cfg.SentimentTimeout <= 0 {
		cfg.SentimentTimeout = DefaultConfig().SentimentTimeout
	}

	l := log.WithComponent("selection")
	return &Selector{
		cfg:      cfg,
		deps:     deps,
		screener: NewScreener(cfg.Liquidity, l),
		logger:   l,
	}, nil
}

// SelectCandidates scores the universe at now and returns candidates, most favourable first.
// Symbols without data or failing the confirmation gate are left out.
func (s *Selector) SelectCandidates(ctx context.Context, universe []string, now time.Time) ([]contracts.CandidateScore, error) {
	symbols := marketdata.SortedSymbols(universe)
	if len(symbols) == 0 {
		return []contracts.CandidateScore{}, nil
	}

	// 1. 시세 조회
	snaps := make([]*contracts.MarketSnapshot, 0, len(symbols))
	for _, r := range s.deps.Fetcher.FetchMany(ctx, symbols) {
		if r.Err != nil {
			s.logger.WithFields(map[string]interface{}{
				"symbol": r.Symbol,
				"stage":  "fetch",
			}).WithError(r.Err).Warn("Skipping symbol without market data")
			continue
		}
		if r.Snapshot.Quote.Symbol == "" {
			r.Snapshot.Quote.Symbol = r.Symbol
		}
		snaps = append(snaps, r.Snapshot)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snaps, _ = s.screener.Screen(snaps)

	// 2~5. 기술 점수, 게이트, 섹터/시간대 배수
	todFactor, todWindow := s.deps.Schedule.Multiplier(now)
	candidates := make([]contracts.CandidateScore, 0, len(snaps))
	for _, snap := range snaps {
		c, ok := s.scoreTechnical(ctx, snap, todFactor, todWindow)
		if ok {
			candidates = append(candidates, c)
		}
	}

	// 6~7. 상위 K개만 감성 분석
	sortByAdjusted(candidates)
	k := s.cfg.TopK
	if k > len(candidates) {
		k = len(candidates)
	}
	s.scoreSentiment(ctx, candidates[:k])
	for i := k; i < len(candidates); i++ {
		candidates[i].SentimentScore = sentiment.Neutral
		candidates[i].Reasoning = append(candidates[i].Reasoning, "sentiment not requested")
	}

	// 8~10. 합성 점수와 최종 정렬
	w := s.cfg.Weights
	for i := range candidates {
		c := &candidates[i]
		c.CompositeScore = w.Composite(c.AdjustedTechnical, c.SentimentScore)
		c.Reasoning = append(c.Reasoning, fmt.Sprintf(
			"composite %.2f = %.2f × %.2f + %.2f × %.2f",
			c.CompositeScore, w.Technical, c.AdjustedTechnical, w.Sentiment, c.SentimentScore))
	}
	sortByComposite(candidates)

	s.deps.Metrics.RecordSelection(len(candidates))
	s.logger.WithFields(map[string]interface{}{
		"universe":   len(symbols),
		"with_data":  len(snaps),
		"candidates": len(candidates),
		"tod":        todFactor,
		"selected":   contracts.Symbols(candidates),
	}).Info("Selection completed")

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveSelection(ctx, now, candidates); err != nil {
			s.logger.WithError(err).Warn("Failed to persist selection")
		}
	}

	return candidates, nil
}

func (s *Selector) scoreTechnical(ctx context.Context, snap *contracts.MarketSnapshot, todFactor float64, todWindow string) (contracts.CandidateScore, bool) {
	symbol := snap.Quote.Symbol

	ts, err := s.deps.Evaluator.Evaluate(symbol, snap.Bars)
	if err != nil {
		level := s.logger.WithFields(map[string]interface{}{"symbol": symbol, "stage": "signals"}).WithError(err)
		if errors.Is(err, contracts.ErrInsufficientBars) {
			level.Debug("Not enough history to evaluate")
		} else {
			level.Warn("Technical evaluation failed")
		}
		return contracts.CandidateScore{}, false
	}
	if !ts.Confirmed {
		s.logger.WithFields(map[string]interface{}{
			"symbol":        symbol,
			"confirmations": ts.Confirmations,
		}).Debug("Confirmation gate not met")
		return contracts.CandidateScore{}, false
	}

	sectorFactor := s.deps.Sector.Multiplier(ctx, symbol)
	sectorName := s.deps.Sector.SectorOf(symbol)
	adjusted := clamp(ts.Score*sectorFactor*todFactor, 0, 10)

	c := contracts.CandidateScore{
		Symbol:              symbol,
		Sector:              sectorName,
		TechnicalScore:      ts.Score,
		AdjustedTechnical:   adjusted,
		SectorMultiplier:    sectorFactor,
		TimeOfDayMultiplier: todFactor,
		Price:               snap.Quote.Price,
		Source:              snap.Quote.Source,
		Signals:             ts,
	}

	c.Reasoning = append(c.Reasoning,
		fmt.Sprintf("technical %.2f (momentum %.2f, volume %.2f, breakout %.2f, %d/3 confirmed)",
			ts.Score, ts.Momentum, ts.VolumeSpike, ts.Breakout, ts.Confirmations))
	if sectorName != "" {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("sector %s ×%.2f", sectorName, sectorFactor))
	} else {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("sector ×%.2f", sectorFactor))
	}
	if todWindow != "" {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("time-of-day %s ×%.2f", todWindow, todFactor))
	} else {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("time-of-day ×%.2f", todFactor))
	}
	c.Reasoning = append(c.Reasoning, fmt.Sprintf("adjusted technical %.2f", adjusted))

	return c, true
}

// scoreSentiment fills sentiment for candidates over a bounded pool; failures score neutral
func (s *Selector) scoreSentiment(ctx context.Context, candidates []contracts.CandidateScore) {
	if len(candidates) == 0 {
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.cfg.SentimentWorkers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.scoreOne(ctx, &candidates[i])
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (s *Selector) scoreOne(ctx context.Context, c *contracts.CandidateScore) {
	c.SentimentRequested = true
	sc := sentiment.Context{
		Sector:         c.Sector,
		Price:          c.Price,
		TechnicalScore: c.TechnicalScore,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SentimentTimeout)
	defer cancel()

	type answer struct {
		score float64
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		score, err := s.deps.Sentiment.Score(callCtx, c.Symbol, sc)
		done <- answer{score, err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-callCtx.Done():
		a = answer{err: fmt.Errorf("sentiment timeout: %w", contracts.ErrAdvisorFailure)}
	}

	if a.err != nil || math.IsNaN(a.score) {
		s.deps.Metrics.RecordAdvisorFailure("sentiment." + s.deps.Sentiment.Name())
		s.logger.WithFields(map[string]interface{}{
			"symbol": c.Symbol,
			"stage":  "sentiment",
		}).WithError(a.err).Warn("Sentiment unavailable, using neutral")
		c.SentimentScore = sentiment.Neutral
		c.Reasoning = append(c.Reasoning, "sentiment unavailable, neutral 5.00")
		return
	}

	c.SentimentScore = clamp(a.score, 0, 10)
	c.Reasoning = append(c.Reasoning, fmt.Sprintf("sentiment %.2f (%s)", c.SentimentScore, s.deps.Sentiment.Name()))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
