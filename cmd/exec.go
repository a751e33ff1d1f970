package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lampbench/internal/cli"
	"lampbench/internal/runner"
)

// execCmd is the load executor: one phase, configured entirely through the
// phase environment (RUN_MODE, BASE_URL, TARGET_RPS, ...).
var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a single load phase described by the environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaryPath, _ := cmd.Flags().GetString("summary-export")
		metricsPath, _ := cmd.Flags().GetString("metrics-textfile")

		cfg, err := runner.ParseConfig(nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, doc, err := cli.Start(ctx, cfg, os.Stdout)
		if err != nil {
			return err
		}
		if err := doc.WriteFile(summaryPath); err != nil {
			return err
		}
		if metricsPath != "" {
			return r.Stats.WriteTextfile(metricsPath, cfg.Mode)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().String("summary-export", "", "path of the phase summary document")
	execCmd.Flags().String("metrics-textfile", os.Getenv("METRICS_TEXTFILE"), "path of the Prometheus metrics textfile")
	execCmd.MarkFlagRequired("summary-export")
}
