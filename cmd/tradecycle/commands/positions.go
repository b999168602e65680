package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// positionsCmd prints positions restored from the position store
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "보유 포지션 조회",
	Long: `DATABASE_URL에 저장된 포지션 스냅샷을 출력합니다.
DB 미설정 시 프로세스 메모리만 사용하므로 항상 비어 있습니다.`,
	RunE: showPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func showPositions(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if a.db == nil {
		fmt.Println("DATABASE_URL not set; no persisted positions")
		return nil
	}

	positions := a.tracker.All()
	PrintTitle(fmt.Sprintf("Open positions: %d", len(positions)))
	if len(positions) > 0 {
		fmt.Println(RenderPositions(positions))
	}
	return nil
}
