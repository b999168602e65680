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

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작 (스케줄러 없음)",
	Long: `상태/제어 API만 실행합니다. 사이클은 POST /api/cycle/run 으로만 실행됩니다.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /ws                     - 이벤트 스트림
  GET  /api/status
  GET  /api/selection
  GET  /api/positions
  GET  /api/sectors
  GET  /api/universe
  PUT  /api/universe
  POST /api/cycle/start
  POST /api/cycle/stop
  POST /api/cycle/run
  POST /api/selection/refresh
  POST /api/signals

Example:
  go run ./cmd/tradecycle api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	server := api.New(a.cfg, a.log, a.router())
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
