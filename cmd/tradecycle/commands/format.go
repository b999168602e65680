package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wonny/tradecycle/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// PrintTitle prints a section title
func PrintTitle(title string) {
	fmt.Println()
	fmt.Println(titleStyle.Render(title))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// RenderCandidates formats a ranked selection
func RenderCandidates(candidates []contracts.CandidateScore) string {
	t := newTable("#", "SYMBOL", "SECTOR", "TECH", "ADJ", "SENT", "SECTOR×", "TOD×", "COMPOSITE", "PRICE", "SOURCE")
	for i, c := range candidates {
		t.Row(
			fmt.Sprintf("%d", i+1),
			c.Symbol,
			c.Sector,
			fmt.Sprintf("%.2f", c.TechnicalScore),
			fmt.Sprintf("%.2f", c.AdjustedTechnical),
			fmt.Sprintf("%.2f", c.SentimentScore),
			fmt.Sprintf("%.2f", c.SectorMultiplier),
			fmt.Sprintf("%.2f", c.TimeOfDayMultiplier),
			fmt.Sprintf("%.2f", c.CompositeScore),
			fmt.Sprintf("%.2f", c.Price),
			c.Source,
		)
	}
	return t.Render()
}

// RenderOutcomes formats per-symbol cycle outcomes
func RenderOutcomes(outcomes []contracts.SymbolOutcome) string {
	t := newTable("SYMBOL", "STAGE", "ACTION", "CONF", "RESULT")
	for _, o := range outcomes {
		action, conf := "-", "-"
		if o.Decision != nil {
			action = string(o.Decision.Action)
			conf = fmt.Sprintf("%.1f", o.Decision.Confidence)
		}
		t.Row(o.Symbol, string(o.Stage), action, conf, outcomeText(o))
	}
	return t.Render()
}

func outcomeText(o contracts.SymbolOutcome) string {
	switch {
	case o.Error != "":
		return errStyle.Render("✗ " + o.Error)
	case o.Fill != nil:
		return okStyle.Render(fmt.Sprintf("✓ %s %d @ %.2f", o.Fill.Side, o.Fill.Quantity, o.Fill.Price))
	case o.Skipped != "":
		return skipStyle.Render(o.Skipped)
	default:
		return ""
	}
}

// RenderPositions formats open positions
func RenderPositions(positions []contracts.Position) string {
	t := newTable("SYMBOL", "QTY", "ENTRY", "STOP", "TARGET", "OPENED")
	for _, p := range positions {
		t.Row(
			p.Symbol,
			fmt.Sprintf("%d", p.Quantity),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.StopLossPrice),
			fmt.Sprintf("%.2f", p.TakeProfitPrice),
			p.EntryTime.Format("2006-01-02 15:04"),
		)
	}
	return t.Render()
}

// joinOrDash joins symbols or returns "-" when empty
func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
