package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"lampbench/internal/report"
	"lampbench/internal/summary"
	"lampbench/internal/tui/styles"
)

// RankingTable renders one pass ranking as a bordered table.
func RankingTable(aggs report.ServiceAggregates) string {
	rows := summary.Ranking(aggs)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("#", "SERVICE", "P95", "P99", "AVG", "ERR", "MAX RPS").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.Active.Padding(0, 1)
			case col == 1:
				return styles.Text.Padding(0, 1)
			case row == 0:
				return styles.Value.Padding(0, 1)
			default:
				return styles.Subtle.Padding(0, 1)
			}
		})

	for i, row := range rows {
		t.Row(
			strconv.Itoa(i+1),
			row.Service,
			fmtMs(row.Fixed.P95),
			fmtMs(row.Fixed.P99),
			fmtMs(row.Fixed.Avg),
			summary.Percent(row.Fixed.ErrorRate),
			summary.FormatNumber(report.Value(row.Stress.MaxStableRPS), 0),
		)
	}
	return t.Render()
}

func fmtMs(v *float64) string {
	s := summary.FormatNumber(report.Value(v), 2)
	if v == nil {
		return s
	}
	return s + "ms"
}

// PrintRanking writes every pass ranking of r to out.
func PrintRanking(out io.Writer, r *report.RunReport) {
	for _, pass := range r.Passes {
		aggs, ok := r.Aggregated[pass]
		if !ok {
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Title.Render(pass.Title()+" pass"))
		fmt.Fprintln(out, RankingTable(aggs))
	}
}
