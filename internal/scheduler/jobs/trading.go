package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// CycleRunner runs trading cycles; implemented by the orchestrator
type CycleRunner interface {
	RunCycle(ctx context.Context) (*contracts.CycleResult, error)
	RefreshSelection(ctx context.Context) (contracts.SelectionStatus, error)
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// CycleJob runs one trading cycle per tick
// ⭐ SSOT: 매매 사이클 주기는 이 Job에서만
type CycleJob struct {
	runner   CycleRunner
	interval time.Duration
	logger   *logger.Logger
}

// NewCycleJob creates the trading cycle job
func NewCycleJob(runner CycleRunner, interval time.Duration, log *logger.Logger) *CycleJob {
	return &CycleJob{runner: runner, interval: interval, logger: log.WithComponent("jobs")}
}

// Name returns the job name
func (j *CycleJob) Name() string {
	return "trading_cycle"
}

// Schedule returns the cron schedule
func (j *CycleJob) Schedule() string {
	return every(j.interval)
}

// Run executes one cycle. Overlap and a stopped orchestrator are not failures;
// a CycleFault is reported to the scheduler without retry.
func (j *CycleJob) Run(ctx context.Context) error {
	result, err := j.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, contracts.ErrCycleRunning):
		j.logger.Warn("Previous cycle still running, tick skipped")
		return nil
	case errors.Is(err, contracts.ErrStopped):
		j.logger.Debug("Trading stopped, tick skipped")
		return nil
	case err != nil:
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"cycle_id":      result.CycleID,
		"trades":        result.TradeCount,
		"market_closed": result.MarketClosed,
	}).Debug("Cycle tick finished")
	return nil
}

// SelectionJob refreshes the stock selection between cycles
type SelectionJob struct {
	runner   CycleRunner
	interval time.Duration
	logger   *logger.Logger
}

// NewSelectionJob creates the selection refresh job
func NewSelectionJob(runner CycleRunner, interval time.Duration, log *logger.Logger) *SelectionJob {
	return &SelectionJob{runner: runner, interval: interval, logger: log.WithComponent("jobs")}
}

// Name returns the job name
func (j *SelectionJob) Name() string {
	return "selection_refresh"
}

// Schedule returns the cron schedule
func (j *SelectionJob) Schedule() string {
	return every(j.interval)
}

// Run refreshes the selection; a busy selector skips the tick
func (j *SelectionJob) Run(ctx context.Context) error {
	sel, err := j.runner.RefreshSelection(ctx)
	if errors.Is(err, contracts.ErrCycleRunning) {
		j.logger.Debug("Selector busy, refresh skipped")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithField("selected", len(sel.SelectedSymbols)).Info("Selection refreshed")
	return nil
}
