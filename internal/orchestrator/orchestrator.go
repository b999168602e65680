package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/decision"
	"github.com/wonny/tradecycle/internal/execution"
	"github.com/wonny/tradecycle/internal/journal"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/internal/notify"
	"github.com/wonny/tradecycle/internal/portfolio"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/logger"
)

// ErrMarketClosed is returned for out-of-cycle signals outside market hours
var ErrMarketClosed = errors.New("market closed")

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

// Selector produces ranked candidates for a universe
type Selector interface {
	SelectCandidates(ctx context.Context, universe []string, now time.Time) ([]contracts.CandidateScore, error)
}

// SnapshotFetcher supplies the market data the advisor judges on
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error)
}

// PositionStore persists position changes; optional
type PositionStore interface {
	SavePosition(ctx context.Context, pos contracts.Position) error
}

// Config holds cycle parameters
type Config struct {
	Universe          []string
	MaxStocksToTrade  int
	SelectionInterval time.Duration
	Workers           int
	DataTimeout       time.Duration
	AdvisorTimeout    time.Duration
	ExecutionTimeout  time.Duration
	MinConfidence     float64
}

// ConfigFrom maps process configuration onto cycle parameters
func ConfigFrom(cfg *config.Config) Config {
	t := cfg.Trading
	return Config{
		Universe:          t.Universe,
		MaxStocksToTrade:  t.MaxStocksToTrade,
		SelectionInterval: t.SelectionInterval,
		Workers:           t.Workers,
		DataTimeout:       t.DataTimeout,
		AdvisorTimeout:    t.AdvisorTimeout,
		ExecutionTimeout:  t.ExecutionTimeout,
		MinConfidence:     t.MinConfidence,
	}
}

// Deps are the collaborators a cycle drives
type Deps struct {
	Selector  Selector
	Data      SnapshotFetcher
	Advisor   decision.Advisor
	Gateway   execution.Gateway
	Planner   *execution.Planner
	Tracker   *portfolio.Tracker
	Journal   journal.Journal
	Positions PositionStore // nil이면 저장하지 않음
	Notifier  notify.Notifier
	Calendar  *Calendar
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

// Orchestrator drives IDLE → SELECTING → FETCHING → DECIDING → EXECUTING → NOTIFYING → IDLE
// ⭐ SSOT: 사이클 상태와 거래 실행 경로는 여기서만
type Orchestrator struct {
	cfg  Config
	deps Deps

	running atomic.Bool
	stopped atomic.Bool

	// selector는 사이클과 refresh가 동시에 호출하지 않는다
	selectMu sync.Mutex

	mu            sync.RWMutex
	universe      []string
	phase         contracts.Phase
	lastCycleTime time.Time
	lastCycleID   string
	lastError     string
	tradesToday   int
	tradesDate    string
	candidates    []contracts.CandidateScore
	selectedAt    time.Time

	symbolLocks sync.Map // symbol → *sync.Mutex

	logger *logger.Logger
}

// New creates an orchestrator
func New(cfg Config, deps Deps, log *logger.Logger) (*Orchestrator, error) {
	switch {
	case deps.Selector == nil:
		return nil, fmt.Errorf("orchestrator: selector is required")
	case deps.Data == nil:
		return nil, fmt.Errorf("orchestrator: data fetcher is required")
	case deps.Advisor == nil:
		return nil, fmt.Errorf("orchestrator: decision advisor is required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("orchestrator: execution gateway is required")
	case deps.Planner == nil:
		return nil, fmt.Errorf("orchestrator: planner is required")
	}

	if cfg.MaxStocksToTrade <= 0 {
		cfg.MaxStocksToTrade = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = 15 * time.Second
	}
	if cfg.AdvisorTimeout <= 0 {
		cfg.AdvisorTimeout = 30 * time.Second
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}

	if deps.Tracker == nil {
		deps.Tracker = portfolio.NewTracker()
	}
	if deps.Journal == nil {
		deps.Journal = journal.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Calendar == nil {
		deps.Calendar = AlwaysOpen()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		phase:  contracts.PhaseIdle,
		logger: log.WithComponent("orchestrator"),
	}
	if err := o.SetUniverse(cfg.Universe); err != nil {
		return nil, err
	}
	return o, nil
}

// Tracker exposes the position tracker for read-only surfaces
func (o *Orchestrator) Tracker() *portfolio.Tracker {
	return o.deps.Tracker
}

// Journal exposes the trade journal for reporting
func (o *Orchestrator) Journal() journal.Journal {
	return o.deps.Journal
}

// Stop refuses new cycles and new per-symbol work; in-flight calls finish or time out
func (o *Orchestrator) Stop() {
	if !o.stopped.Swap(true) {
		o.logger.Info("Trading stopped")
	}
}

// Resume re-enables cycles after Stop
func (o *Orchestrator) Resume() {
	if o.stopped.Swap(false) {
		o.logger.Info("Trading resumed")
	}
}

// Stopped reports whether Stop is in effect
func (o *Orchestrator) Stopped() bool {
	return o.stopped.Load()
}

// Status returns a snapshot of the cycle state
func (o *Orchestrator) Status() contracts.CycleStatus {
	now := o.deps.Now()

	o.mu.RLock()
	defer o.mu.RUnlock()

	trades := o.tradesToday
	if o.tradesDate != o.deps.Calendar.MarketDate(now) {
		trades = 0
	}
	return contracts.CycleStatus{
		IsRunning:      o.running.Load(),
		Stopped:        o.stopped.Load(),
		Phase:          o.phase,
		LastCycleTime:  o.lastCycleTime,
		LastCycleID:    o.lastCycleID,
		TradesToday:    trades,
		PositionsCount: o.deps.Tracker.Count(),
		MarketOpen:     o.deps.Calendar.IsOpen(now),
		LastError:      o.lastError,
	}
}

// Selection returns the latest ranked selection
func (o *Orchestrator) Selection() contracts.SelectionStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	candidates := make([]contracts.CandidateScore, len(o.candidates))
	copy(candidates, o.candidates)
	return contracts.SelectionStatus{
		SelectedSymbols:   contracts.Symbols(candidates),
		LastSelectionTime: o.selectedAt,
		Candidates:        candidates,
	}
}

// Universe returns the symbols considered by the next selection
func (o *Orchestrator) Universe() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.universe))
	copy(out, o.universe)
	return out
}

// SetUniverse validates and replaces the universe. The current selection is
// marked stale so the next cycle reselects.
func (o *Orchestrator) SetUniverse(symbols []string) error {
	seen := make(map[string]bool, len(symbols))
	universe := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := contracts.NormalizeSymbol(s)
		if !symbolPattern.MatchString(sym) {
			return fmt.Errorf("invalid symbol %q", s)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		universe = append(universe, sym)
	}
	if len(universe) == 0 {
		return fmt.Errorf("universe must contain at least one symbol")
	}

	o.mu.Lock()
	o.universe = universe
	o.selectedAt = time.Time{}
	o.mu.Unlock()

	o.logger.WithField("symbols", len(universe)).Info("Universe updated")
	return nil
}

// ValidSymbol reports whether s is an acceptable ticker after normalization
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(contracts.NormalizeSymbol(s))
}

func (o *Orchestrator) setPhase(p contracts.Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) currentPhase() contracts.Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

func (o *Orchestrator) emit(ctx context.Context, ev contracts.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.deps.Now()
	}
	o.deps.Notifier.Emit(ctx, ev)
}

func (o *Orchestrator) lockSymbol(symbol string) func() {
	v, _ := o.symbolLocks.LoadOrStore(symbol, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// countTrade bumps trades_today, resetting it when the market date changes
func (o *Orchestrator) countTrade(at time.Time) {
	date := o.deps.Calendar.MarketDate(at)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tradesDate != date {
		o.tradesDate = date
		o.tradesToday = 0
	}
	o.tradesToday++
}

func newCycleID() string {
	return uuid.NewString()[:8]
}

// sortedPositionSymbols returns held symbols not already in selected
func sortedPositionSymbols(held []contracts.Position, selected []string) []string {
	in := make(map[string]bool, len(selected))
	for _, s := range selected {
		in[s] = true
	}
	var out []string
	for _, p := range held {
		if !in[p.Symbol] {
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out
}
