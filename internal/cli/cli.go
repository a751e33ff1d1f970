// Package cli renders headless console output: live phase progress for the
// load executor and the ranking tables printed after a run.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"lampbench/internal/report"
	"lampbench/internal/runner"
)

// Start runs one phase and reports progress to out until it finishes. The
// runner is returned so callers can export its raw statistics.
func Start(ctx context.Context, cfg runner.Config, out io.Writer) (*runner.Runner, *report.Document, error) {
	printHeader(out, cfg)

	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(cfg, updates)

	type result struct {
		doc *report.Document
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := r.Run(ctx)
		done <- result{doc, err}
	}()

	startTime := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	totalDuration := cfg.Duration
	if cfg.Mode == report.ModeColdStart {
		totalDuration = cfg.ColdStartMaxWait
	}

	for {
		select {
		case <-updates:
			// Drain updates
		case res := <-done:
			elapsed := time.Since(startTime)
			printProgress(out, r.Snapshot(), 1.0, elapsed, totalDuration)
			printSummary(out, r, elapsed)
			return r, res.doc, res.err
		case <-ticker.C:
			elapsed := time.Since(startTime)
			pct := 0.0
			if totalDuration > 0 {
				pct = min(elapsed.Seconds()/totalDuration.Seconds(), 1.0)
			}
			snap := r.Snapshot()
			if pct >= 1.0 && snap.Inflight > 0 {
				fmt.Fprintf(out, "\r%s %3.0f%% | %s/%s | Draining: %d requests...                ",
					progressBar(1.0, 20), 100.0,
					elapsed.Round(time.Second), totalDuration,
					snap.Inflight)
				continue
			}
			printProgress(out, snap, pct, elapsed, totalDuration)
		}
	}
}

func printHeader(out io.Writer, cfg runner.Config) {
	fmt.Fprintf(out, "\n🚀 PHASE %s\n", strings.ToUpper(cfg.Mode))
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Target     : %s%s\n", cfg.BaseURL, cfg.BasePath)
	if cfg.Mode == report.ModeColdStart {
		fmt.Fprintf(out, "Probe      : GET %s every %s, up to %s\n", cfg.ColdStartEndpoint, cfg.ColdStartInterval, cfg.ColdStartMaxWait)
	} else {
		preAllocated, maxWorkers := cfg.Workers()
		fmt.Fprintf(out, "Rate       : %d req/s for %s\n", cfg.TargetRPS, cfg.Duration)
		fmt.Fprintf(out, "Workers    : %d (max %d)\n", preAllocated, maxWorkers)
		fmt.Fprintf(out, "Mix        : list %d / get %d / create %d / update %d / delete %d\n",
			cfg.ListWeight, cfg.GetWeight, cfg.CreateWeight, cfg.UpdateWeight, cfg.DeleteWeight)
	}
	fmt.Fprintf(out, "Timeout    : %s\n", cfg.RequestTimeout)
	fmt.Fprintf(out, "======================================================================\n\n")
}

func printProgress(out io.Writer, snap runner.StatsSnapshot, pct float64, elapsed, total time.Duration) {
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(snap.Requests) / elapsed.Seconds()
	}
	fmt.Fprintf(out, "\r%s %3.0f%% | %s/%s | Inf: %3d | RPS: %.1f | OK: %d | Err: %d | Drop: %d",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second), total,
		snap.Inflight,
		rps,
		snap.Success,
		snap.Fail,
		snap.Dropped,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(out io.Writer, r *runner.Runner, totalTime time.Duration) {
	stats := r.Stats
	rps := 0.0
	if totalTime > 0 {
		rps = float64(stats.Requests) / totalTime.Seconds()
	}

	fmt.Fprintf(out, "\n\n📊 PHASE RESULTS\n")
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Total Duration : %s\n", totalTime.Round(time.Millisecond))
	fmt.Fprintf(out, "Requests Sent  : %d\n", stats.Requests)
	fmt.Fprintf(out, "Success        : %d\n", stats.Success)
	fmt.Fprintf(out, "Failures       : %d\n", stats.Fail)
	fmt.Fprintf(out, "Dropped        : %d\n", stats.Dropped)
	fmt.Fprintf(out, "Error Rate     : %.3f%%\n", stats.ErrorRate()*100)
	fmt.Fprintf(out, "Actual RPS     : %.2f\n", rps)
	fmt.Fprintf(out, "\n⏱️  RESPONSE TIMES (ms)\n")
	fmt.Fprintf(out, "   P50 : %.2f\n", stats.GetP50Service())
	fmt.Fprintf(out, "   P90 : %.2f\n", stats.GetP90Service())
	fmt.Fprintf(out, "   P95 : %.2f\n", stats.GetP95Service())
	fmt.Fprintf(out, "   P99 : %.2f\n", stats.GetP99Service())
	fmt.Fprintf(out, "   Max : %.2f\n", stats.ServiceTime.MaxMs())

	errCounts := stats.GetErrorCounts()
	if len(errCounts) > 0 {
		fmt.Fprintf(out, "\n❌ FAILURE SUMMARY\n")
		for _, ec := range errCounts {
			fmt.Fprintf(out, "   %d x %s\n", ec.Count, ec.Reason)
		}
	}
	fmt.Fprintf(out, "======================================================================\n")
}
