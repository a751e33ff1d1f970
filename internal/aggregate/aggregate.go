// Package aggregate collapses repeated benchmark iterations into medians.
//
// Aggregation only reads iteration results; raw results stay untouched in
// the run report so they can be re-aggregated or audited later.
package aggregate

import (
	"math"
	"sort"

	"lampbench/internal/config"
	"lampbench/internal/report"
)

// Median returns the median of the finite values in vals, or nil when there
// are none. Even-sized sets yield the mean of the two middle values.
func Median(vals []float64) *float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 0 {
		return report.Float((finite[mid-1] + finite[mid]) / 2)
	}
	return report.Float(finite[mid])
}

func medianOf(n int, at func(i int) float64) *float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = at(i)
	}
	return Median(vals)
}

func latency(s report.PhaseSummary, pick func(*report.LatencyStats) *float64) float64 {
	if s.Duration == nil {
		return math.NaN()
	}
	return report.Value(pick(s.Duration))
}

func phase(summaries []report.PhaseSummary) report.PhaseAggregate {
	n := len(summaries)
	return report.PhaseAggregate{
		P95:       medianOf(n, func(i int) float64 { return latency(summaries[i], func(l *report.LatencyStats) *float64 { return l.P95 }) }),
		P99:       medianOf(n, func(i int) float64 { return latency(summaries[i], func(l *report.LatencyStats) *float64 { return l.P99 }) }),
		Avg:       medianOf(n, func(i int) float64 { return latency(summaries[i], func(l *report.LatencyStats) *float64 { return l.Avg }) }),
		ErrorRate: medianOf(n, func(i int) float64 { return summaries[i].ErrorRate }),
	}
}

// Aggregate computes the cross-iteration summary of one service in one pass.
// Extreme and cold-start figures only consider iterations that ran them.
func Aggregate(runs []report.IterationResult) report.AggregateResult {
	fixed := make([]report.PhaseSummary, len(runs))
	var extreme []report.PhaseSummary
	var cold []report.ColdStartResult
	for i, r := range runs {
		fixed[i] = r.Fixed
		if r.Extreme != nil {
			extreme = append(extreme, *r.Extreme)
		}
		if r.ColdStart != nil {
			cold = append(cold, *r.ColdStart)
		}
	}

	res := report.AggregateResult{
		Fixed: phase(fixed),
		Stress: report.StressAggregate{
			MaxStableRPS: medianOf(len(runs), func(i int) float64 {
				if runs[i].Stress.MaxStableRPS == nil {
					return math.NaN()
				}
				return float64(*runs[i].Stress.MaxStableRPS)
			}),
		},
	}
	if len(extreme) > 0 {
		agg := phase(extreme)
		res.Extreme = &agg
	}
	if len(cold) > 0 {
		res.ColdStart = coldStart(cold)
	}
	return res
}

func coldStart(samples []report.ColdStartResult) *report.ColdStartAggregate {
	agg := &report.ColdStartAggregate{}
	ready := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Ready {
			agg.SuccessfulSamples++
			ready = append(ready, report.Value(s.ReadyMs))
		} else {
			agg.FailedSamples++
		}
	}
	agg.ReadyMs = Median(ready)
	agg.Attempts = medianOf(len(samples), func(i int) float64 { return float64(samples[i].Attempts) })
	agg.ErrorRate = medianOf(len(samples), func(i int) float64 { return samples[i].ErrorRate })
	return agg
}

// Pass aggregates every service of one pass.
func Pass(runs report.ServiceRuns) report.ServiceAggregates {
	out := make(report.ServiceAggregates, len(runs))
	for name, iterations := range runs {
		out[name] = Aggregate(iterations)
	}
	return out
}

// Delta compares one service's fixed-phase p95 across the memory and db passes.
type Delta struct {
	Service  string
	MemoryMs *float64
	DBMs     *float64
	// DeltaMs is DB minus memory, nil unless both sides are available.
	DeltaMs *float64
}

// Deltas pairs services present in both the memory and db passes, sorted by
// service name.
func Deltas(aggregated map[config.PassKind]report.ServiceAggregates) []Delta {
	memory := aggregated[config.PassMemory]
	db := aggregated[config.PassDatabase]

	var out []Delta
	for name, mem := range memory {
		dbAgg, ok := db[name]
		if !ok {
			continue
		}
		d := Delta{Service: name, MemoryMs: mem.Fixed.P95, DBMs: dbAgg.Fixed.P95}
		if d.MemoryMs != nil && d.DBMs != nil {
			d.DeltaMs = report.Float(*d.DBMs - *d.MemoryMs)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}
