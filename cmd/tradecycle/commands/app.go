package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/tradecycle/internal/api"
	"github.com/wonny/tradecycle/internal/api/handlers"
	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/decision"
	"github.com/wonny/tradecycle/internal/execution"
	"github.com/wonny/tradecycle/internal/journal"
	"github.com/wonny/tradecycle/internal/marketdata"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/internal/notify"
	"github.com/wonny/tradecycle/internal/orchestrator"
	"github.com/wonny/tradecycle/internal/portfolio"
	"github.com/wonny/tradecycle/internal/report"
	"github.com/wonny/tradecycle/internal/scheduler"
	"github.com/wonny/tradecycle/internal/scheduler/jobs"
	"github.com/wonny/tradecycle/internal/sector"
	"github.com/wonny/tradecycle/internal/selection"
	"github.com/wonny/tradecycle/internal/sentiment"
	"github.com/wonny/tradecycle/internal/signals"
	"github.com/wonny/tradecycle/internal/strategyconfig"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/database"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// app holds every wired component of one process
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config

	registry *prometheus.Registry
	metrics  *metrics.Recorder

	redis *redis.Client
	db    *database.DB // DATABASE_URL 미설정 시 nil

	quotes    *marketdata.QuoteCache
	provider  *marketdata.Provider
	sectors   *sector.Weighting
	selector  *selection.Selector
	tracker   *portfolio.Tracker
	journal   journal.Journal
	orch      *orchestrator.Orchestrator
	hub       *notify.Hub
	notifier  *notify.Multi
	publisher *report.Publisher

	closers []func()
}

// newApp loads configuration and wires the trading stack
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategyFile != "" {
		cfg.Trading.StrategyFile = strategyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	a := &app{cfg: cfg, log: logger.New(cfg)}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	// 3. Strategy
	if err := a.loadStrategy(); err != nil {
		return nil, err
	}

	// 4. Metrics
	a.registry = prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.New(a.registry)
	}

	// 5. Redis (disabled client when REDIS_ENABLED=false)
	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.redis.Close() })
	limiter := redis.NewRateLimiter(a.redis, "tradecycle:ratelimit")
	cache := redis.NewCache(a.redis, "tradecycle")

	// 6. Database (optional)
	if cfg.Database.Enabled() {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, a.db.Close)
		if err := a.db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("Connected to database")
	}

	// 7. Market data
	tiers, err := marketdata.BuildTiers(cfg, limiter, a.log)
	if err != nil {
		return nil, fmt.Errorf("build data tiers: %w", err)
	}
	a.quotes = marketdata.NewQuoteCache(cfg.Trading.CycleInterval)
	a.provider = marketdata.NewProvider(tiers, marketdata.Config{
		Window:  a.strategy.Signals.Window,
		Workers: cfg.Trading.Workers,
	}, a.quotes, a.metrics, a.log)
	a.log.WithField("tiers", a.provider.TierNames()).Info("Market data tiers ready")

	// 8. Selection
	if err := a.buildSelector(ctx, cache); err != nil {
		return nil, err
	}

	// 9. Portfolio & journal
	var positions orchestrator.PositionStore
	a.tracker = portfolio.NewTracker()
	a.journal = journal.NewMemory()
	if a.db != nil {
		repo := portfolio.NewRepository(a.db.Pool)
		held, err := repo.LoadPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load positions: %w", err)
		}
		if err := a.tracker.Restore(held); err != nil {
			return nil, fmt.Errorf("restore positions: %w", err)
		}
		positions = repo
		a.journal = journal.NewPostgres(a.db.Pool)
	}

	// 10. Notifications
	a.hub = notify.NewHub(a.log)
	var closeNotify func()
	a.notifier, closeNotify = notify.FromConfig(cfg, a.metrics, limiter, a.hub, a.log)
	a.closers = append(a.closers, closeNotify)

	// 11. Orchestrator
	if err := a.buildOrchestrator(ctx, limiter, positions); err != nil {
		return nil, err
	}

	// 12. Reports
	analyzer := report.NewAnalyzer(a.journal, a.tracker, a.log)
	a.publisher = report.NewPublisher(analyzer, a.notifier, cache, a.calendarLocation(), a.log)

	ok = true
	return a, nil
}

func (a *app) loadStrategy() error {
	if path := a.cfg.Trading.StrategyFile; path != "" {
		cfg, data, err := strategyconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load strategy: %w", err)
		}
		snap, err := strategyconfig.NewDecisionSnapshot(cfg, data)
		if err != nil {
			return err
		}
		a.log.WithFields(map[string]interface{}{
			"strategy_id": snap.StrategyID,
			"version":     snap.Version,
			"config_hash": snap.ConfigHash[:12],
		}).Info("Strategy loaded")
		a.strategy = cfg
	} else {
		cfg, err := strategyconfig.Default(a.cfg.Trading.Timezone, a.cfg.Trading.Universe)
		if err != nil {
			return fmt.Errorf("default strategy: %w", err)
		}
		a.strategy = cfg
	}

	for _, w := range strategyconfig.Warn(a.strategy) {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}
	return nil
}

func (a *app) buildSelector(ctx context.Context, cache *redis.Cache) error {
	schedule, err := a.strategy.Schedule()
	if err != nil {
		return err
	}
	advisor, err := sentiment.New(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("sentiment advisor: %w", err)
	}

	a.sectors = sector.NewWeighting(a.strategy.SectorConfig(), a.provider, cache, a.log)

	deps := selection.Deps{
		Fetcher:   a.provider,
		Evaluator: signals.NewEvaluator(a.strategy.SignalConfig(), a.log),
		Sector:    a.sectors,
		Sentiment: advisor,
		Schedule:  schedule,
		Metrics:   a.metrics,
	}
	if a.db != nil {
		deps.Store = selection.NewRepository(a.db.Pool)
	}

	a.selector, err = selection.NewSelector(a.strategy.SelectionConfig(), deps, a.log)
	return err
}

func (a *app) buildOrchestrator(ctx context.Context, limiter *redis.RateLimiter, positions orchestrator.PositionStore) error {
	t := a.cfg.Trading
	cal, err := orchestrator.NewCalendar(t.Timezone, t.MarketOpen, t.MarketClose, t.Holidays)
	if err != nil {
		return fmt.Errorf("market calendar: %w", err)
	}

	advisor, err := decision.New(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("decision advisor: %w", err)
	}

	risk := contracts.RiskParams{
		MaxPositionSize: t.MaxPositionSize,
		RiskPercentage:  t.RiskPercentage,
		StopLossPct:     t.StopLossPct,
		TakeProfitPct:   t.TakeProfitPct,
	}

	ocfg := orchestrator.ConfigFrom(a.cfg)
	ocfg.Universe = a.strategy.Symbols()

	a.orch, err = orchestrator.New(ocfg, orchestrator.Deps{
		Selector:  a.selector,
		Data:      a.provider,
		Advisor:   advisor,
		Gateway:   execution.New(a.cfg, a.provider, limiter, a.log),
		Planner:   execution.NewPlanner(risk, a.log),
		Tracker:   a.tracker,
		Journal:   a.journal,
		Positions: positions,
		Notifier:  a.notifier,
		Calendar:  cal,
		Metrics:   a.metrics,
	}, a.log)
	return err
}

func (a *app) calendarLocation() *time.Location {
	loc, err := time.LoadLocation(a.cfg.Trading.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// newScheduler registers the cycle, selection, report and maintenance jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.calendarLocation(), a.log)

	list := []scheduler.Job{
		jobs.NewCycleJob(a.orch, a.cfg.Trading.CycleInterval, a.log),
		jobs.NewSelectionJob(a.orch, a.cfg.Trading.SelectionInterval, a.log),
		jobs.NewCacheCleanupJob(a.quotes, a.log),
	}
	for _, j := range jobs.NewReportJobs(a.publisher, a.log) {
		list = append(list, j)
	}

	for _, j := range list {
		if err := sched.AddJob(j); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// router mounts the status API, websocket stream and metrics
func (a *app) router() http.Handler {
	deps := api.RouterDeps{
		Cycle:     handlers.NewCycleHandler(a.orch, a.log),
		Portfolio: handlers.NewPortfolioHandler(a.tracker, a.sectors, a.quotes, a.log),
		Stream:    a.hub,
	}
	if a.cfg.MetricsEnabled {
		deps.Gatherer = a.registry
	}
	return api.NewRouter(deps, a.log)
}

// close releases resources in reverse order
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
