package cmd

import (
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lampbench/internal/cli"
	"lampbench/internal/config"
	"lampbench/internal/orchestrator"
	"lampbench/internal/report"
	"lampbench/internal/shell"
	"lampbench/internal/storage"
	"lampbench/internal/summary"
)

const (
	reportFile  = "run-report.json"
	summaryFile = "summary.md"
	archiveFile = "history.db"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Benchmark every service across the configured passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("config"))
		if err != nil {
			return err
		}
		services, err := config.LoadServices(viper.GetString("services"))
		if err != nil {
			return err
		}

		var passes []config.PassKind
		if list, _ := cmd.Flags().GetString("passes"); list != "" {
			if passes, err = config.SplitPasses(list); err != nil {
				return err
			}
		}

		sh := shell.NewExecRunner()
		executor, err := orchestrator.NewProcessExecutor(cfg.Executor.Command, sh)
		if err != nil {
			return err
		}
		timeout, err := time.ParseDuration(cfg.Workload.RequestTimeout)
		if err != nil {
			return &config.ConfigurationError{Field: "workload.requestTimeout", Reason: err.Error()}
		}

		now := time.Now()
		runID := orchestrator.NewRunID(now)
		o := &orchestrator.Orchestrator{
			Config:     cfg,
			Services:   services,
			ResultsDir: resultsDir(),
			RunID:      runID,
			Executor:   executor,
			Shell:      sh,
			Prechecker: orchestrator.HTTPPrechecker{Timeout: timeout},
			Rand:       rand.New(rand.NewSource(now.UnixNano())),
			Now:        time.Now,
			Out:        os.Stdout,
			Log:        logrus.WithField("runId", runID),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep, err := o.Run(ctx, passes)
		if err != nil {
			return err
		}

		reportPath := filepath.Join(resultsDir(), reportFile)
		if err := report.WriteJSON(reportPath, rep); err != nil {
			return err
		}
		summaryPath := filepath.Join(resultsDir(), summaryFile)
		if err := summary.WriteFile(summaryPath, rep); err != nil {
			return err
		}

		cli.PrintRanking(os.Stdout, rep)
		logrus.WithFields(logrus.Fields{"report": reportPath, "summary": summaryPath}).Info("benchmark complete")

		if archive, _ := cmd.Flags().GetBool("archive"); archive {
			return archiveRun(filepath.Join(resultsDir(), archiveFile), rep)
		}
		return nil
	},
}

func archiveRun(path string, rep *report.RunReport) error {
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(rep); err != nil {
		return errors.Wrap(err, "archiving run")
	}
	logrus.WithField("archive", store.Path()).Info("run archived")
	return nil
}

func init() {
	runCmd.Flags().String("passes", "", "comma separated passes to run (memory,db), overrides the config")
	runCmd.Flags().Bool("archive", false, "also record the run in <results-dir>/"+archiveFile)
}
