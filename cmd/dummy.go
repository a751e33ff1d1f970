package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lampbench/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the in-memory lamp service",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg dummy.ServerConfig
		cfg.Port, _ = cmd.Flags().GetInt("port")
		cfg.BasePath, _ = cmd.Flags().GetString("base-path")
		cfg.Profile, _ = cmd.Flags().GetString("profile")
		cfg.StartupDelay, _ = cmd.Flags().GetDuration("startup-delay")
		cfg.ErrorRate, _ = cmd.Flags().GetFloat64("error-rate")

		server := dummy.Start(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	dummyCmd.Flags().String("base-path", "/v1", "API prefix of the lamp routes")
	dummyCmd.Flags().String("profile", "", "latency profile: fast, medium or spike")
	dummyCmd.Flags().Duration("startup-delay", 0, "time /health answers 503 after start")
	dummyCmd.Flags().Float64("error-rate", 0, "fraction of lamp requests answered with 500")
}
