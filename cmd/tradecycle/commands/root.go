package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tradecycle",
	Short: "Trading cycle orchestrator with stock selection scoring",
	Long: `tradecycle CLI

매매 사이클 오케스트레이터.
종목 선정 → 시세 조회 → 판단 → 주문 → 알림.

Usage:
  go run ./cmd/tradecycle [command]

Examples:
  go run ./cmd/tradecycle run
  go run ./cmd/tradecycle select
  go run ./cmd/tradecycle cycle
  go run ./cmd/tradecycle scheduler list`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
