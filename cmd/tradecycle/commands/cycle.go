package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cycleCmd runs one full trading cycle
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "매매 사이클 1회 실행",
	Long: `SELECTING → FETCHING → DECIDING → EXECUTING → NOTIFYING 을 한 번 실행합니다.
장 마감 시간에는 주문 없이 종료됩니다. PAPER_TRADING=true 권장.

Example:
  PAPER_TRADING=true go run ./cmd/tradecycle cycle`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.orch.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("cycle: %w", err)
	}

	if res.MarketClosed {
		PrintTitle(fmt.Sprintf("Cycle %s: market closed, nothing to do", res.CycleID))
		return nil
	}

	PrintTitle(fmt.Sprintf("Cycle %s: %d trades in %.2fs", res.CycleID, res.TradeCount, res.Duration().Seconds()))
	fmt.Printf("Selected: %s\n", joinOrDash(res.Selected))
	fmt.Println(RenderOutcomes(res.Outcomes))
	return nil
}
