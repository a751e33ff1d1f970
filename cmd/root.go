package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lampbench/internal/banner"
	"lampbench/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lampbench",
	Short: "lampbench - Lamp API Benchmark Harness",
	Long: `
lampbench benchmarks several implementations of the same lamp CRUD API.

Each service is driven through a memory pass and a database pass: a CRUD
precheck, a warmup, a fixed-rate measurement, a stepped stress ramp stopped
at the first SLO violation and an optional extreme-load phase. Results are
aggregated across iterations and ranked in a Markdown summary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log-level"))
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("lampbench failed")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", filepath.Join("benchmarks", "config.json"), "benchmark config file (JSON or YAML)")
	flags.String("services", filepath.Join("benchmarks", "services.json"), "service list file (JSON or YAML)")
	flags.String("results-dir", filepath.Join("benchmarks", "results"), "directory for reports and raw phase summaries")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	for _, name := range []string{"config", "services", "results-dir", "log-level"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(runCmd, execCmd, summaryCmd, deployCmd, dummyCmd, historyCmd)
}

// initConfig lets LAMPBENCH_* variables stand in for the global flags, e.g.
// LAMPBENCH_RESULTS_DIR.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return &config.ConfigurationError{Field: "log-level", Reason: err.Error()}
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

func resultsDir() string { return viper.GetString("results-dir") }
