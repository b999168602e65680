package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/decision"
)

// work is one symbol's state as it moves through the cycle stages
type work struct {
	symbol   string
	snap     *contracts.MarketSnapshot
	decision *contracts.Decision
	outcome  contracts.SymbolOutcome
	done     bool
}

func (w *work) fail(stage contracts.Phase, err error) {
	w.done = true
	w.outcome.Stage = stage
	w.outcome.Error = (&contracts.SymbolError{Symbol: w.symbol, Stage: stage, Err: err}).Error()
}

func (w *work) skip(stage contracts.Phase, reason string) {
	w.done = true
	w.outcome.Stage = stage
	w.outcome.Skipped = reason
}

// RunCycle performs one full traversal of the state machine. Symbol-level
// failures are recorded in the result; only a CycleFault is returned as error.
func (o *Orchestrator) RunCycle(ctx context.Context) (result *contracts.CycleResult, err error) {
	if o.stopped.Load() {
		return nil, contracts.ErrStopped
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, contracts.ErrCycleRunning
	}
	defer o.running.Store(false)

	now := o.deps.Now()
	result = &contracts.CycleResult{CycleID: newCycleID(), StartedAt: now}
	log := o.logger.WithField("cycle_id", result.CycleID)

	defer func() {
		if r := recover(); r != nil {
			err = &contracts.CycleFault{CycleID: result.CycleID, Phase: o.currentPhase(), Err: fmt.Errorf("panic: %v", r)}
		}
		result.FinishedAt = o.deps.Now()
		if err != nil {
			o.handleFault(ctx, result, err)
		}
		o.setPhase(contracts.PhaseIdle)
	}()

	o.emit(ctx, contracts.Event{
		Type:    contracts.EventCycleStarted,
		CycleID: result.CycleID,
		Stage:   contracts.PhaseSelecting,
		Message: "Trading cycle started",
	})

	// SELECTING
	o.setPhase(contracts.PhaseSelecting)
	selected, err := o.selectionForCycle(ctx, now)
	if err != nil {
		return result, &contracts.CycleFault{CycleID: result.CycleID, Phase: contracts.PhaseSelecting, Err: err}
	}
	result.Selected = selected

	// 장외 시간: 선정은 갱신하고 매매는 하지 않음
	if !o.deps.Calendar.IsOpen(now) {
		result.MarketClosed = true
		o.finishCycle(ctx, result, "market closed")
		log.WithField("selected", len(selected)).Info("Market closed, trading skipped after selection")
		return result, nil
	}

	// 보유 종목도 청산 판단을 위해 함께 평가
	symbols := append(append([]string{}, selected...), sortedPositionSymbols(o.deps.Tracker.All(), selected)...)
	items := make([]*work, len(symbols))
	for i, s := range symbols {
		items[i] = &work{symbol: s, outcome: contracts.SymbolOutcome{Symbol: s}}
	}

	log.WithFields(map[string]interface{}{
		"selected": len(selected),
		"held":     len(symbols) - len(selected),
	}).Info("Cycle symbols resolved")

	stages := []struct {
		phase contracts.Phase
		run   func(context.Context, string, *work)
	}{
		{contracts.PhaseFetching, o.fetchStage},
		{contracts.PhaseDeciding, o.decideStage},
		{contracts.PhaseExecuting, o.executeStage},
	}
	for _, st := range stages {
		o.setPhase(st.phase)
		if err := o.runStage(ctx, result.CycleID, st.phase, items, st.run); err != nil {
			return result, err
		}
	}

	// 결과는 선정 순서대로
	for _, w := range items {
		if w.outcome.Fill != nil {
			result.TradeCount++
		}
		result.Outcomes = append(result.Outcomes, w.outcome)
	}

	o.finishCycle(ctx, result, "completed")
	return result, nil
}

// runStage applies fn to every unfinished item on a bounded pool. A panic in
// any worker aborts the cycle as a CycleFault.
func (o *Orchestrator) runStage(ctx context.Context, cycleID string, phase contracts.Phase, items []*work, fn func(context.Context, string, *work)) error {
	sem := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup
	var faultOnce sync.Once
	var fault error

	for _, w := range items {
		if w.done {
			continue
		}

		// 슬롯을 얻은 뒤 확인해야 대기 중에 들어온 Stop도 반영됨
		sem <- struct{}{}
		if o.stopped.Load() {
			<-sem
			w.skip(phase, "trading stopped")
			continue
		}

		wg.Add(1)
		go func(w *work) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					faultOnce.Do(func() {
						fault = &contracts.CycleFault{CycleID: cycleID, Phase: phase, Err: fmt.Errorf("%s: panic: %v", w.symbol, r)}
					})
				}
			}()
			fn(ctx, cycleID, w)
		}(w)
	}
	wg.Wait()
	return fault
}

func (o *Orchestrator) fetchStage(ctx context.Context, _ string, w *work) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.DataTimeout)
	defer cancel()

	snap, err := o.deps.Data.FetchSnapshot(fctx, w.symbol)
	if err != nil {
		o.logger.WithFields(map[string]interface{}{
			"symbol": w.symbol,
			"stage":  contracts.PhaseFetching,
		}).WithError(err).Warn("Market data unavailable, skipping symbol")
		w.fail(contracts.PhaseFetching, err)
		return
	}
	w.snap = snap
}

func (o *Orchestrator) decideStage(ctx context.Context, _ string, w *work) {
	var pos *contracts.Position
	if p, ok := o.deps.Tracker.Get(w.symbol); ok {
		pos = &p
	}

	in := decision.NewInput(w.snap, pos)
	in.Symbol = w.symbol
	d := o.judge(ctx, in)
	w.decision = &d
	w.outcome.Decision = &d
	w.outcome.Stage = contracts.PhaseDeciding
}

// judge runs the advisor under its timeout; any failure degrades to HOLD
func (o *Orchestrator) judge(ctx context.Context, in decision.Input) contracts.Decision {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.AdvisorTimeout)
	defer cancel()

	type reply struct {
		d   contracts.Decision
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		d, err := o.deps.Advisor.Judge(dctx, in)
		ch <- reply{d, err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-dctx.Done():
		r.err = fmt.Errorf("%s: %v: %w", in.Symbol, dctx.Err(), contracts.ErrAdvisorFailure)
	}

	if r.err != nil {
		o.deps.Metrics.RecordAdvisorFailure(o.deps.Advisor.Name())
		o.logger.WithFields(map[string]interface{}{
			"symbol":  in.Symbol,
			"advisor": o.deps.Advisor.Name(),
		}).WithError(r.err).Warn("Decision advisor failed, holding")
		return contracts.Hold(in.Symbol, "advisor unavailable")
	}
	r.d.Symbol = in.Symbol
	return r.d
}

func (o *Orchestrator) executeStage(ctx context.Context, cycleID string, w *work) {
	_ = o.act(ctx, cycleID, *w.decision, w.snap.Quote.Price, o.deps.Advisor.Name(), &w.outcome)
	w.done = true
}

// act turns an actionable decision into an order and applies the fill.
// The outcome is updated in place; a skip is not an error.
func (o *Orchestrator) act(ctx context.Context, cycleID string, d contracts.Decision, price float64, source string, out *contracts.SymbolOutcome) error {
	out.Stage = contracts.PhaseExecuting
	if d.Action == contracts.ActionHold {
		out.Skipped = "hold"
		return nil
	}
	if d.Confidence < o.cfg.MinConfidence {
		out.Skipped = fmt.Sprintf("confidence %.1f below %.1f", d.Confidence, o.cfg.MinConfidence)
		return nil
	}

	unlock := o.lockSymbol(d.Symbol)
	defer unlock()

	var pos *contracts.Position
	if p, ok := o.deps.Tracker.Get(d.Symbol); ok {
		pos = &p
	}

	order, reason := o.deps.Planner.Plan(d, price, pos)
	if reason != "" {
		out.Skipped = reason
		return nil
	}

	ectx, cancel := context.WithTimeout(ctx, o.cfg.ExecutionTimeout)
	defer cancel()

	fill, err := o.deps.Gateway.Submit(ectx, order)
	if err != nil {
		if !errors.Is(err, contracts.ErrExecutionFailure) {
			err = fmt.Errorf("%v: %w", err, contracts.ErrExecutionFailure)
		}
		o.logger.WithFields(map[string]interface{}{
			"symbol":   d.Symbol,
			"side":     order.Side,
			"quantity": order.Quantity,
			"gateway":  o.deps.Gateway.Name(),
		}).WithError(err).Error("Order execution failed")
		return o.symbolFailure(out, err)
	}

	if err := o.applyFill(ctx, cycleID, d, fill, source); err != nil {
		return o.symbolFailure(out, err)
	}
	out.Fill = &fill
	return nil
}

func (o *Orchestrator) symbolFailure(out *contracts.SymbolOutcome, err error) error {
	serr := &contracts.SymbolError{Symbol: out.Symbol, Stage: contracts.PhaseExecuting, Err: err}
	out.Error = serr.Error()
	return serr
}

// applyFill moves the position, journals the trade and announces it
func (o *Orchestrator) applyFill(ctx context.Context, cycleID string, d contracts.Decision, fill contracts.Fill, source string) error {
	log := o.logger.WithFields(map[string]interface{}{
		"cycle_id": cycleID,
		"symbol":   fill.Symbol,
		"side":     fill.Side,
		"quantity": fill.Quantity,
		"price":    fill.Price,
		"order_id": fill.OrderID,
	})

	var (
		pos contracts.Position
		err error
	)
	if fill.Side == contracts.OrderSideBuy {
		pos, err = o.deps.Tracker.Open(fill, o.deps.Planner.Risk())
	} else {
		pos, err = o.deps.Tracker.Close(fill)
		pos.Symbol = contracts.NormalizeSymbol(fill.Symbol)
	}
	if err != nil {
		// 브로커는 체결했으나 추적기가 거부: 수동 확인 필요
		log.WithError(err).Error("Fill could not be applied to positions")
		return err
	}

	if o.deps.Positions != nil {
		if err := o.deps.Positions.SavePosition(ctx, pos); err != nil {
			log.WithError(err).Warn("Failed to persist position")
		}
	}

	rec := contracts.TradeRecord{
		ID:         uuid.NewString(),
		CycleID:    cycleID,
		Timestamp:  fill.Timestamp,
		Symbol:     fill.Symbol,
		Action:     d.Action,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Confidence: d.Confidence,
		Source:     source,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = o.deps.Now()
	}
	if err := o.deps.Journal.Append(ctx, rec); err != nil {
		log.WithError(err).Error("Failed to journal trade")
	}

	o.countTrade(o.deps.Now())
	o.deps.Metrics.RecordTrade(string(fill.Side))

	log.Info("Trade executed")
	o.emit(ctx, contracts.Event{
		Type:    contracts.EventTradeExecuted,
		CycleID: cycleID,
		Symbol:  fill.Symbol,
		Stage:   contracts.PhaseExecuting,
		Message: fmt.Sprintf("%s %d %s @ %.2f", fill.Side, fill.Quantity, fill.Symbol, fill.Price),
		Data: map[string]interface{}{
			"side":       fill.Side,
			"quantity":   fill.Quantity,
			"price":      fill.Price,
			"confidence": d.Confidence,
			"order_id":   fill.OrderID,
			"rationale":  d.Rationale,
		},
	})
	return nil
}

// finishCycle runs NOTIFYING and records the cycle in status
func (o *Orchestrator) finishCycle(ctx context.Context, result *contracts.CycleResult, outcome string) {
	o.setPhase(contracts.PhaseNotifying)
	result.FinishedAt = o.deps.Now()

	skipped, failed := 0, 0
	for _, out := range result.Outcomes {
		switch {
		case out.Error != "":
			failed++
		case out.Skipped != "":
			skipped++
		}
	}

	o.mu.Lock()
	o.lastCycleTime = result.FinishedAt
	o.lastCycleID = result.CycleID
	if result.MarketClosed {
		o.lastError = "market closed"
	} else {
		o.lastError = ""
	}
	o.mu.Unlock()

	metricOutcome := "completed"
	if result.MarketClosed {
		metricOutcome = "market_closed"
	}
	o.deps.Metrics.RecordCycle(metricOutcome, result.Duration())

	o.logger.WithFields(map[string]interface{}{
		"cycle_id": result.CycleID,
		"selected": len(result.Selected),
		"trades":   result.TradeCount,
		"skipped":  skipped,
		"failed":   failed,
		"duration": result.Duration(),
	}).Info("Trading cycle " + outcome)

	o.emit(ctx, contracts.Event{
		Type:    contracts.EventCycleCompleted,
		CycleID: result.CycleID,
		Stage:   contracts.PhaseNotifying,
		Message: "Trading cycle " + outcome,
		Data: map[string]interface{}{
			"selected":      result.Selected,
			"trades":        result.TradeCount,
			"skipped":       skipped,
			"failed":        failed,
			"market_closed": result.MarketClosed,
			"duration_ms":   result.Duration().Milliseconds(),
		},
	})
}

func (o *Orchestrator) handleFault(ctx context.Context, result *contracts.CycleResult, err error) {
	var fault *contracts.CycleFault
	if !errors.As(err, &fault) {
		return
	}

	o.mu.Lock()
	o.lastCycleTime = result.FinishedAt
	o.lastCycleID = result.CycleID
	o.lastError = err.Error()
	o.mu.Unlock()

	o.deps.Metrics.RecordCycle("fault", result.Duration())
	o.logger.WithFields(map[string]interface{}{
		"cycle_id": result.CycleID,
		"phase":    fault.Phase,
	}).WithError(fault.Err).Error("Trading cycle faulted")

	o.emit(ctx, contracts.Event{
		Type:    contracts.EventError,
		CycleID: result.CycleID,
		Stage:   fault.Phase,
		Message: err.Error(),
	})
}

// selectionForCycle reuses a fresh selection or runs the selector, then
// keeps the top MaxStocksToTrade symbols.
func (o *Orchestrator) selectionForCycle(ctx context.Context, now time.Time) ([]string, error) {
	o.selectMu.Lock()
	defer o.selectMu.Unlock()

	o.mu.RLock()
	fresh := !o.selectedAt.IsZero() && o.cfg.SelectionInterval > 0 && now.Sub(o.selectedAt) < o.cfg.SelectionInterval
	candidates := o.candidates
	o.mu.RUnlock()

	if !fresh {
		var err error
		candidates, err = o.runSelector(ctx, now)
		if err != nil {
			return nil, err
		}
	}

	symbols := contracts.Symbols(candidates)
	if len(symbols) > o.cfg.MaxStocksToTrade {
		symbols = symbols[:o.cfg.MaxStocksToTrade]
	}
	return symbols, nil
}

// runSelector must be called with selectMu held
func (o *Orchestrator) runSelector(ctx context.Context, now time.Time) ([]contracts.CandidateScore, error) {
	candidates, err := o.deps.Selector.SelectCandidates(ctx, o.Universe(), now)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	o.mu.Lock()
	o.candidates = candidates
	o.selectedAt = now
	o.mu.Unlock()

	o.emit(ctx, contracts.Event{
		Type:    contracts.EventSelectionUpdated,
		Stage:   contracts.PhaseSelecting,
		Message: fmt.Sprintf("Selected %d candidates", len(candidates)),
		Data: map[string]interface{}{
			"symbols": contracts.Symbols(candidates),
		},
	})
	return candidates, nil
}

// RefreshSelection runs SELECTING alone. It is skipped with ErrCycleRunning
// while a cycle or another refresh holds the selector.
func (o *Orchestrator) RefreshSelection(ctx context.Context) (contracts.SelectionStatus, error) {
	if o.running.Load() || !o.selectMu.TryLock() {
		o.logger.Debug("Selection refresh skipped, selector busy")
		return contracts.SelectionStatus{}, contracts.ErrCycleRunning
	}
	defer o.selectMu.Unlock()

	if _, err := o.runSelector(ctx, o.deps.Now()); err != nil {
		o.logger.WithError(err).Error("Selection refresh failed")
		o.emit(ctx, contracts.Event{Type: contracts.EventError, Stage: contracts.PhaseSelecting, Message: err.Error()})
		return contracts.SelectionStatus{}, err
	}
	return o.Selection(), nil
}

// SubmitSignal runs an externally supplied decision through the execution path
func (o *Orchestrator) SubmitSignal(ctx context.Context, d contracts.Decision) (contracts.SymbolOutcome, error) {
	d.Symbol = contracts.NormalizeSymbol(d.Symbol)
	out := contracts.SymbolOutcome{Symbol: d.Symbol, Decision: &d}

	if o.stopped.Load() {
		return out, contracts.ErrStopped
	}
	if !ValidSymbol(d.Symbol) {
		return out, fmt.Errorf("invalid symbol %q", d.Symbol)
	}
	if !o.deps.Calendar.IsOpen(o.deps.Now()) {
		return out, ErrMarketClosed
	}

	fctx, cancel := context.WithTimeout(ctx, o.cfg.DataTimeout)
	snap, err := o.deps.Data.FetchSnapshot(fctx, d.Symbol)
	cancel()
	if err != nil {
		out.Stage = contracts.PhaseFetching
		return out, &contracts.SymbolError{Symbol: d.Symbol, Stage: contracts.PhaseFetching, Err: err}
	}

	o.logger.WithFields(map[string]interface{}{
		"symbol":     d.Symbol,
		"action":     d.Action,
		"confidence": d.Confidence,
	}).Info("External signal received")

	err = o.act(ctx, "signal-"+newCycleID(), d, snap.Quote.Price, "webhook", &out)
	return out, err
}
