package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/decision"
	"github.com/wonny/tradecycle/internal/execution"
	"github.com/wonny/tradecycle/internal/journal"
	"github.com/wonny/tradecycle/internal/notify"
	"github.com/wonny/tradecycle/internal/portfolio"
	"github.com/wonny/tradecycle/pkg/logger"
)

type stubSelector struct {
	mu      sync.Mutex
	symbols []string
	err     error
	gate    chan struct{} // non-nil blocks until closed
	calls   atomic.Int32
}

func (s *stubSelector) SelectCandidates(ctx context.Context, universe []string, _ time.Time) ([]contracts.CandidateScore, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.CandidateScore, len(s.symbols))
	for i, sym := range s.symbols {
		out[i] = contracts.CandidateScore{Symbol: sym, CompositeScore: float64(10 - i)}
	}
	return out, nil
}

type stubData struct {
	down  map[string]bool
	panic map[string]bool
}

func (d stubData) FetchSnapshot(_ context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	if d.panic[symbol] {
		panic("corrupt payload")
	}
	if d.down[symbol] {
		return nil, contracts.ErrDataUnavailable
	}
	return &contracts.MarketSnapshot{
		Quote: contracts.Quote{Symbol: symbol, Price: 100, Volume: 1_000_000, Source: "stub"},
		Bars:  []contracts.Bar{{Close: 100, High: 101, Low: 99, Volume: 1_000_000}},
	}, nil
}

type stubAdvisor struct {
	decisions map[string]contracts.Decision
	fail      map[string]bool
}

func (a stubAdvisor) Name() string { return "stub" }

func (a stubAdvisor) Judge(_ context.Context, in decision.Input) (contracts.Decision, error) {
	if a.fail[in.Symbol] {
		return contracts.Hold(in.Symbol, "failed"), contracts.ErrAdvisorFailure
	}
	if d, ok := a.decisions[in.Symbol]; ok {
		return d, nil
	}
	return contracts.Hold(in.Symbol, "no view"), nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func buy(conf float64, qty int) contracts.Decision {
	return contracts.Decision{Action: contracts.ActionBuy, Confidence: conf, Quantity: qty, Rationale: "test"}
}

type fixture struct {
	orch     *Orchestrator
	selector *stubSelector
	gateway  *execution.MockGateway
	tracker  *portfolio.Tracker
	journal  *journal.Memory
	events   *notify.Recorder
	clock    *clock
}

var risk = contracts.RiskParams{MaxPositionSize: 10_000, RiskPercentage: 2, StopLossPct: 5, TakeProfitPct: 10}

func newFixture(t *testing.T, advisor decision.Advisor, data SnapshotFetcher, modify ...func(*Config, *Deps)) *fixture {
	t.Helper()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal, err := NewCalendar("America/New_York", "09:30", "16:00", []string{"2026-12-25"})
	require.NoError(t, err)

	f := &fixture{
		selector: &stubSelector{symbols: []string{"AAPL", "MSFT"}},
		gateway:  execution.NewMockGateway(),
		tracker:  portfolio.NewTracker(),
		journal:  journal.NewMemory(),
		events:   &notify.Recorder{},
		clock:    &clock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, ny)}, // 수요일
	}

	cfg := Config{
		Universe:          []string{"AAPL", "MSFT", "GOOG"},
		MaxStocksToTrade:  5,
		SelectionInterval: 30 * time.Minute,
		Workers:           2,
		DataTimeout:       time.Second,
		AdvisorTimeout:    time.Second,
		ExecutionTimeout:  time.Second,
		MinConfidence:     6,
	}
	deps := Deps{
		Selector: f.selector,
		Data:     data,
		Advisor:  advisor,
		Gateway:  f.gateway,
		Planner:  execution.NewPlanner(risk, logger.NewNop()),
		Tracker:  f.tracker,
		Journal:  f.journal,
		Notifier: f.events,
		Calendar: cal,
		Now:      f.clock.Now,
	}
	for _, m := range modify {
		m(&cfg, &deps)
	}

	f.orch, err = New(cfg, deps, logger.NewNop())
	require.NoError(t, err)
	return f
}

func TestRunCycle_ExecutesBuys(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{
		"AAPL": buy(8, 2),
		"MSFT": buy(9, 3),
	}}
	f := newFixture(t, advisor, stubData{})

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, result.Selected)
	assert.Equal(t, 2, result.TradeCount)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "AAPL", result.Outcomes[0].Symbol)
	assert.Equal(t, "MSFT", result.Outcomes[1].Symbol)
	require.NotNil(t, result.Outcomes[1].Fill)
	assert.Equal(t, 3, result.Outcomes[1].Fill.Quantity)

	pos, ok := f.tracker.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 2, pos.Quantity)
	assert.InDelta(t, 95.0, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 110.0, pos.TakeProfitPrice, 1e-9)
	assert.Equal(t, 2, f.journal.Len())

	assert.Len(t, f.events.OfType(contracts.EventCycleStarted), 1)
	assert.Len(t, f.events.OfType(contracts.EventSelectionUpdated), 1)
	assert.Len(t, f.events.OfType(contracts.EventTradeExecuted), 2)
	assert.Len(t, f.events.OfType(contracts.EventCycleCompleted), 1)

	status := f.orch.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, contracts.PhaseIdle, status.Phase)
	assert.Equal(t, 2, status.TradesToday)
	assert.Equal(t, 2, status.PositionsCount)
	assert.True(t, status.MarketOpen)
	assert.Equal(t, result.CycleID, status.LastCycleID)
}

func TestRunCycle_ExecutionFailureIsolated(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{
		"AAPL": buy(8, 1),
		"MSFT": buy(8, 1),
	}}
	f := newFixture(t, advisor, stubData{})
	f.gateway.FailWith("MSFT", errors.New("insufficient buying power"))

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TradeCount)
	assert.NotNil(t, result.Outcomes[0].Fill)
	assert.Nil(t, result.Outcomes[1].Fill)
	assert.Contains(t, result.Outcomes[1].Error, "execution failure")
	assert.Equal(t, contracts.PhaseExecuting, result.Outcomes[1].Stage)

	_, held := f.tracker.Get("MSFT")
	assert.False(t, held, "failed execution must not open a position")
	assert.Equal(t, 1, f.tracker.Count())
	assert.Equal(t, 1, f.journal.Len())
}

func TestRunCycle_AllDataDown(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{down: map[string]bool{"AAPL": true, "MSFT": true}})

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.TradeCount)
	for _, out := range result.Outcomes {
		assert.Equal(t, contracts.PhaseFetching, out.Stage)
		assert.Contains(t, out.Error, "data unavailable")
		assert.Nil(t, out.Decision)
	}
	assert.Empty(t, f.gateway.Orders())
	assert.Len(t, f.events.OfType(contracts.EventCycleCompleted), 1)
}

func TestRunCycle_MarketClosed(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{"AAPL": buy(9, 1)}}
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
	}{
		{"weekend", time.Date(2026, 10, 17, 11, 0, 0, 0, ny)},
		{"before open", time.Date(2026, 10, 14, 9, 29, 0, 0, ny)},
		{"after close", time.Date(2026, 10, 14, 16, 0, 0, 0, ny)},
		{"holiday", time.Date(2026, 12, 25, 11, 0, 0, 0, ny)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, advisor, stubData{})
			f.clock.Set(tt.at)

			result, err := f.orch.RunCycle(context.Background())
			require.NoError(t, err)

			assert.True(t, result.MarketClosed)
			assert.Equal(t, []string{"AAPL", "MSFT"}, result.Selected)
			assert.Empty(t, result.Outcomes)
			assert.Zero(t, result.TradeCount)
			assert.Empty(t, f.gateway.Orders(), "no trading outside market hours")

			assert.Equal(t, int32(1), f.selector.calls.Load(), "selection still runs")
			sel := f.orch.Selection()
			assert.Equal(t, tt.at, sel.LastSelectionTime)
			assert.Equal(t, []string{"AAPL", "MSFT"}, sel.SelectedSymbols)

			status := f.orch.Status()
			assert.Equal(t, "market closed", status.LastError)
			assert.Equal(t, contracts.PhaseIdle, status.Phase)
			assert.Len(t, f.events.OfType(contracts.EventSelectionUpdated), 1)
			assert.Len(t, f.events.OfType(contracts.EventCycleCompleted), 1)
		})
	}
}

func TestRunCycle_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})
	f.selector.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.RunCycle(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return f.selector.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.orch.Status().IsRunning)
	assert.Equal(t, contracts.PhaseSelecting, f.orch.Status().Phase)

	_, err := f.orch.RunCycle(context.Background())
	assert.ErrorIs(t, err, contracts.ErrCycleRunning)

	_, err = f.orch.RefreshSelection(context.Background())
	assert.ErrorIs(t, err, contracts.ErrCycleRunning)

	close(f.selector.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), f.selector.calls.Load())
}

func TestRunCycle_PanicBecomesFault(t *testing.T) {
	data := stubData{panic: map[string]bool{"MSFT": true}}
	f := newFixture(t, stubAdvisor{}, data)

	_, err := f.orch.RunCycle(context.Background())
	require.Error(t, err)

	var fault *contracts.CycleFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, contracts.PhaseFetching, fault.Phase)
	assert.Contains(t, fault.Error(), "corrupt payload")

	status := f.orch.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, contracts.PhaseIdle, status.Phase)
	assert.NotEmpty(t, status.LastError)
	assert.Len(t, f.events.OfType(contracts.EventError), 1)

	// 다음 사이클은 정상 진행
	delete(data.panic, "MSFT")
	_, err = f.orch.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestRunCycle_SelectorErrorIsFault(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})
	f.selector.err = errors.New("bad weights")

	_, err := f.orch.RunCycle(context.Background())
	assert.True(t, contracts.IsCycleFault(err))
	assert.Equal(t, contracts.PhaseIdle, f.orch.Status().Phase)
}

func TestRunCycle_AdvisorFailureHolds(t *testing.T) {
	advisor := stubAdvisor{
		decisions: map[string]contracts.Decision{"AAPL": buy(9, 1), "MSFT": buy(9, 1)},
		fail:      map[string]bool{"AAPL": true},
	}
	f := newFixture(t, advisor, stubData{})

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	aapl := result.Outcomes[0]
	require.NotNil(t, aapl.Decision)
	assert.Equal(t, contracts.ActionHold, aapl.Decision.Action)
	assert.Equal(t, "hold", aapl.Skipped)
	assert.NotNil(t, result.Outcomes[1].Fill)
	assert.Len(t, f.gateway.Orders(), 1)
}

func TestRunCycle_ConfidenceGate(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{
		"AAPL": buy(5.9, 1),
		"MSFT": buy(6, 1),
	}}
	f := newFixture(t, advisor, stubData{})

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Outcomes[0].Skipped, "below")
	assert.NotNil(t, result.Outcomes[1].Fill, "threshold is inclusive")
}

func TestRunCycle_TopK(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{}, func(c *Config, _ *Deps) { c.MaxStocksToTrade = 1 })

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, result.Selected)
	assert.Len(t, f.orch.Selection().Candidates, 2, "status keeps the full ranking")
}

func TestRunCycle_ReusesFreshSelection(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})

	_, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	f.clock.Set(f.clock.Now().Add(10 * time.Minute))
	_, err = f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.selector.calls.Load())

	f.clock.Set(f.clock.Now().Add(30 * time.Minute))
	_, err = f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.selector.calls.Load(), "stale selection is recomputed")

	require.NoError(t, f.orch.SetUniverse([]string{"NVDA"}))
	_, err = f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.selector.calls.Load(), "universe change invalidates selection")
}

func TestRunCycle_SellsHeldPositionOutsideSelection(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{
		"TSLA": {Action: contracts.ActionSell, Confidence: 8, Rationale: "stop loss"},
	}}
	f := newFixture(t, advisor, stubData{})
	require.NoError(t, f.tracker.Restore([]contracts.Position{
		{Symbol: "TSLA", Quantity: 4, EntryPrice: 120, EntryTime: f.clock.Now().Add(-24 * time.Hour)},
	}))

	result, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	tsla := result.Outcomes[2]
	assert.Equal(t, "TSLA", tsla.Symbol)
	require.NotNil(t, tsla.Fill)
	assert.Equal(t, 4, tsla.Fill.Quantity)
	assert.Equal(t, contracts.OrderSideSell, tsla.Fill.Side)

	_, held := f.tracker.Get("TSLA")
	assert.False(t, held)
}

func TestStopResume(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})

	f.orch.Stop()
	assert.True(t, f.orch.Status().Stopped)
	_, err := f.orch.RunCycle(context.Background())
	assert.ErrorIs(t, err, contracts.ErrStopped)
	_, err = f.orch.SubmitSignal(context.Background(), buy(9, 1))
	assert.ErrorIs(t, err, contracts.ErrStopped)

	f.orch.Resume()
	_, err = f.orch.RunCycle(context.Background())
	assert.NoError(t, err)
}

// gatedAdvisor blocks Judge for one symbol until release is closed
type gatedAdvisor struct {
	symbol  string
	entered chan struct{}
	release chan struct{}
}

func (a gatedAdvisor) Name() string { return "gated" }

func (a gatedAdvisor) Judge(_ context.Context, in decision.Input) (contracts.Decision, error) {
	if in.Symbol == a.symbol {
		close(a.entered)
		<-a.release
	}
	return buy(9, 1), nil
}

func TestStop_MidCycleRefusesNewSymbolWork(t *testing.T) {
	advisor := gatedAdvisor{symbol: "AAPL", entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, advisor, stubData{}, func(c *Config, _ *Deps) {
		c.Workers = 1
		c.AdvisorTimeout = 5 * time.Second
	})
	f.selector.symbols = []string{"AAPL", "MSFT", "GOOG"}

	done := make(chan *contracts.CycleResult, 1)
	go func() {
		result, err := f.orch.RunCycle(context.Background())
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case <-advisor.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("advisor was never called")
	}
	f.orch.Stop()
	close(advisor.release)

	var result *contracts.CycleResult
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish after stop")
	}
	require.NotNil(t, result)
	require.Len(t, result.Outcomes, 3)

	// 진행 중이던 판단은 끝까지 수행
	aapl := result.Outcomes[0]
	require.NotNil(t, aapl.Decision)
	assert.Equal(t, contracts.ActionBuy, aapl.Decision.Action)
	assert.Equal(t, "trading stopped", aapl.Skipped)
	assert.Equal(t, contracts.PhaseExecuting, aapl.Stage)

	for _, out := range result.Outcomes[1:] {
		assert.Equal(t, "trading stopped", out.Skipped, out.Symbol)
		assert.Equal(t, contracts.PhaseDeciding, out.Stage, out.Symbol)
		assert.Nil(t, out.Decision, out.Symbol)
	}

	assert.Empty(t, f.gateway.Orders())
	assert.Zero(t, result.TradeCount)
	assert.Zero(t, f.tracker.Count())
	assert.False(t, f.orch.Status().IsRunning)
	assert.True(t, f.orch.Status().Stopped)
}

func TestTradesTodayResetsOnNewMarketDate(t *testing.T) {
	advisor := stubAdvisor{decisions: map[string]contracts.Decision{"AAPL": buy(8, 1)}}
	f := newFixture(t, advisor, stubData{})

	_, err := f.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.orch.Status().TradesToday)

	f.clock.Set(f.clock.Now().Add(24 * time.Hour))
	assert.Zero(t, f.orch.Status().TradesToday)
}

func TestSubmitSignal(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{down: map[string]bool{"NFLX": true}})

	d := buy(9, 2)
	d.Symbol = "nvda"
	out, err := f.orch.SubmitSignal(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, out.Fill)
	assert.Equal(t, "NVDA", out.Fill.Symbol)
	assert.Equal(t, 1, f.orch.Status().TradesToday)

	recs, err := f.journal.Between(context.Background(), time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "webhook", recs[0].Source)

	// 같은 종목 재매수는 건너뜀
	out, err = f.orch.SubmitSignal(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "position already open", out.Skipped)

	d.Symbol = "NFLX"
	_, err = f.orch.SubmitSignal(context.Background(), d)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)

	d.Symbol = "not a ticker"
	_, err = f.orch.SubmitSignal(context.Background(), d)
	assert.Error(t, err)

	f.clock.Set(time.Date(2026, 10, 17, 11, 0, 0, 0, f.clock.Now().Location()))
	d.Symbol = "AMD"
	_, err = f.orch.SubmitSignal(context.Background(), d)
	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestSubmitSignal_ExecutionFailure(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})
	f.gateway.FailWith("AMD", errors.New("rejected"))

	d := buy(9, 1)
	d.Symbol = "AMD"
	_, err := f.orch.SubmitSignal(context.Background(), d)
	assert.ErrorIs(t, err, contracts.ErrExecutionFailure)
	assert.Zero(t, f.tracker.Count())
}

func TestRefreshSelection(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})

	sel, err := f.orch.RefreshSelection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, sel.SelectedSymbols)
	assert.Equal(t, f.clock.Now(), sel.LastSelectionTime)
	assert.Len(t, f.events.OfType(contracts.EventSelectionUpdated), 1)

	f.selector.err = errors.New("provider misconfigured")
	_, err = f.orch.RefreshSelection(context.Background())
	assert.Error(t, err)
	assert.Len(t, f.events.OfType(contracts.EventError), 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.orch.Selection().SelectedSymbols, "failed refresh keeps the last selection")
}

func TestSetUniverse(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})

	tests := []struct {
		name    string
		symbols []string
		want    []string
		wantErr bool
	}{
		{"normalizes and dedupes", []string{"aapl", " MSFT ", "AAPL"}, []string{"AAPL", "MSFT"}, false},
		{"class suffix", []string{"BRK.B"}, []string{"BRK.B"}, false},
		{"too long", []string{"GOOGLE"}, nil, true},
		{"digits", []string{"A1"}, nil, true},
		{"empty", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.orch.SetUniverse(tt.symbols)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.orch.Universe())
		})
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Universe: []string{"AAPL"}}, Deps{}, logger.NewNop())
	assert.Error(t, err)
}

func TestSubmitSignal_SellWithoutQuantityClosesPosition(t *testing.T) {
	f := newFixture(t, stubAdvisor{}, stubData{})
	require.NoError(t, f.tracker.Restore([]contracts.Position{
		{Symbol: "TSLA", Quantity: 7, EntryPrice: 120, EntryTime: f.clock.Now().Add(-time.Hour)},
	}))

	out, err := f.orch.SubmitSignal(context.Background(), contracts.Decision{
		Symbol: "TSLA", Action: contracts.ActionSell, Confidence: 8, Rationale: "webhook exit",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Fill)
	assert.Equal(t, 7, out.Fill.Quantity)

	_, held := f.tracker.Get("TSLA")
	assert.False(t, held)
}
