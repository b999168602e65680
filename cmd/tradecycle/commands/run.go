package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecycle/internal/api"
)

// runCmd starts the scheduler and the API server together
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "스케줄러 + API 서버 시작",
	Long: `매매 사이클 스케줄러와 상태 API를 함께 실행합니다.

등록되는 작업:
- trading_cycle: CYCLE_INTERVAL마다 (장중에만 매매)
- selection_refresh: SELECTION_INTERVAL마다
- daily_report / weekly_report / monthly_report
- cache_cleanup: 5분마다

Example:
  go run ./cmd/tradecycle run
  go run ./cmd/tradecycle run --strategy config/strategy/us_momentum.yaml`,
	RunE: runAll,
}

var runPort string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAll(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if runPort != "" {
		a.cfg.Port = runPort
	}

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	server := api.New(a.cfg, a.log, a.router())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	sched.Start()

	fmt.Printf("\n✅ Trading on %d symbols, API on http://localhost:%s\n", len(a.orch.Universe()), a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return err
		}
	}

	a.log.Info("Shutting down...")
	a.orch.Stop()
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Stopped")
	return nil
}
