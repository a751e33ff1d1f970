package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lampbench/internal/report"
	"lampbench/internal/summary"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [report.json] [summary.md]",
	Short: "Render the Markdown summary of a run report",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportPath := filepath.Join(resultsDir(), reportFile)
		summaryPath := filepath.Join(resultsDir(), summaryFile)
		if len(args) > 0 {
			reportPath = args[0]
		}
		if len(args) > 1 {
			summaryPath = args[1]
		}

		rep, err := report.Read(reportPath)
		if err != nil {
			return err
		}
		if err := summary.WriteFile(summaryPath, rep); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Summary written to %s\n", summaryPath)
		return nil
	},
}
