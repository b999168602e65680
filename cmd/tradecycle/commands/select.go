package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecycle/internal/selection"
)

// selectCmd runs one selection pass and prints the ranking
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "종목 선정 1회 실행",
	Long: `유니버스 전체를 점수화하고 복합 점수 순으로 출력합니다.
주문은 실행하지 않습니다.

Example:
  go run ./cmd/tradecycle select
  go run ./cmd/tradecycle select --top 5
  go run ./cmd/tradecycle select --last   # 저장된 마지막 선정 결과 (DB 필요)`,
	RunE: runSelect,
}

var (
	selectTop  int
	selectLast bool
)

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().IntVar(&selectTop, "top", 0, "출력할 상위 종목 수 (0 = 전체)")
	selectCmd.Flags().BoolVar(&selectLast, "last", false, "저장된 마지막 선정 결과 출력")
}

func runSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if selectLast {
		return printLastSelection(cmd.Context(), a)
	}

	universe := a.orch.Universe()
	start := time.Now()

	candidates, err := a.selector.SelectCandidates(cmd.Context(), universe, time.Now())
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if selectTop > 0 && len(candidates) > selectTop {
		candidates = candidates[:selectTop]
	}

	PrintTitle(fmt.Sprintf("Selection: %d of %d symbols (%.2fs)", len(candidates), len(universe), time.Since(start).Seconds()))
	fmt.Println(RenderCandidates(candidates))
	return nil
}

func printLastSelection(ctx context.Context, a *app) error {
	if a.db == nil {
		return fmt.Errorf("--last requires DATABASE_URL")
	}
	at, candidates, err := selection.NewRepository(a.db.Pool).Latest(ctx)
	if err != nil {
		return fmt.Errorf("load last selection: %w", err)
	}
	if at.IsZero() {
		fmt.Println("No saved selection")
		return nil
	}
	if selectTop > 0 && len(candidates) > selectTop {
		candidates = candidates[:selectTop]
	}

	PrintTitle(fmt.Sprintf("Last selection at %s", at.In(a.calendarLocation()).Format("2006-01-02 15:04 MST")))
	fmt.Println(RenderCandidates(candidates))
	return nil
}
