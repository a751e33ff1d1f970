// Package summary renders a run report as a Markdown document.
package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lampbench/internal/aggregate"
	"lampbench/internal/config"
	"lampbench/internal/report"
)

// FormatNumber renders v with the given decimals, or n/a when v is not finite.
func FormatNumber(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", digits, v)
}

func num(v *float64) string { return FormatNumber(report.Value(v), 2) }

// Percent renders a 0..1 fraction as a percentage with three decimals.
func Percent(v *float64) string { return FormatNumber(report.Value(v)*100, 3) + "%" }

// Row is one ranked service of a pass.
type Row struct {
	Service string
	report.AggregateResult
}

// Ranking orders a pass by ascending fixed p95. Services without a p95 go
// last; ties are broken by name.
func Ranking(aggs report.ServiceAggregates) []Row {
	rows := make([]Row, 0, len(aggs))
	for name, agg := range aggs {
		rows = append(rows, Row{Service: name, AggregateResult: agg})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Fixed.P95, rows[j].Fixed.P95
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		}
		return rows[i].Service < rows[j].Service
	})
	return rows
}

func sortedServices(aggs report.ServiceAggregates) []string {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// passes returns the report's passes that have aggregates, in report order.
func passes(r *report.RunReport) []config.PassKind {
	var out []config.PassKind
	for _, p := range r.Passes {
		if _, ok := r.Aggregated[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Render builds the Markdown summary of r. It only reads the report.
func Render(r *report.RunReport) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Benchmark Summary")
	line("")
	line("Generated: %s", r.GeneratedAt)
	line("")

	for _, pass := range passes(r) {
		line("## %s Pass Ranking", pass.Title())
		line("")
		line("| Rank | Service | p95 (ms) | p99 (ms) | Avg (ms) | Error Rate | Max Stable RPS |")
		line("|---|---|---:|---:|---:|---:|---:|")
		for i, row := range Ranking(r.Aggregated[pass]) {
			line("| %d | %s | %s | %s | %s | %s | %s |", i+1, row.Service,
				num(row.Fixed.P95), num(row.Fixed.P99), num(row.Fixed.Avg), Percent(row.Fixed.ErrorRate),
				FormatNumber(report.Value(row.Stress.MaxStableRPS), 0))
		}
		line("")
	}

	if deltas := aggregate.Deltas(r.Aggregated); len(deltas) > 0 {
		line("## Memory vs DB Delta")
		line("")
		line("| Service | Memory p95 (ms) | DB p95 (ms) | Delta (DB - Memory) |")
		line("|---|---:|---:|---:|")
		for _, d := range deltas {
			line("| %s | %s | %s | %s |", d.Service, num(d.MemoryMs), num(d.DBMs), num(d.DeltaMs))
		}
		line("")
	}

	line("## Cold Start Appendix")
	line("")
	line("| Pass | Service | Ready Time (ms) | Attempts | Error Rate | Samples (ok/failed) |")
	line("|---|---|---:|---:|---:|---:|")
	for _, pass := range passes(r) {
		aggs := r.Aggregated[pass]
		for _, name := range sortedServices(aggs) {
			cold := aggs[name].ColdStart
			if cold == nil {
				cold = &report.ColdStartAggregate{}
			}
			line("| %s | %s | %s | %s | %s | %d/%d |", pass, name,
				num(cold.ReadyMs), FormatNumber(report.Value(cold.Attempts), 0), Percent(cold.ErrorRate),
				cold.SuccessfulSamples, cold.FailedSamples)
		}
	}
	line("")

	heading := "Extreme Load Appendix"
	if rps := r.Config.Extreme.RPS; rps > 0 {
		heading = fmt.Sprintf("Extreme Load Appendix (%d RPS)", rps)
	}
	line("## %s", heading)
	line("")
	line("| Pass | Service | p95 (ms) | p99 (ms) | Avg (ms) | Error Rate |")
	line("|---|---|---:|---:|---:|---:|")
	for _, pass := range passes(r) {
		aggs := r.Aggregated[pass]
		for _, name := range sortedServices(aggs) {
			ext := aggs[name].Extreme
			if ext == nil {
				continue
			}
			line("| %s | %s | %s | %s | %s | %s |", pass, name, num(ext.P95), num(ext.P99), num(ext.Avg), Percent(ext.ErrorRate))
		}
	}
	line("")
	if r.RawRoot != "" {
		line("Raw per-phase summaries are under `%s`.", r.RawRoot)
	}
	return b.String()
}

// WriteFile renders r and replaces path with the result.
func WriteFile(path string, r *report.RunReport) error {
	return report.WriteFileAtomic(path, []byte(Render(r)))
}
