package report

import (
	"math"

	"lampbench/internal/config"
)

// LatencyStats is a latency distribution in milliseconds. A nil field means
// the executor produced no value for it.
type LatencyStats struct {
	Avg *float64 `json:"avg"`
	P95 *float64 `json:"p95"`
	P99 *float64 `json:"p99"`
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// PhaseSummary is the outcome of one Load Executor invocation.
type PhaseSummary struct {
	Duration  *LatencyStats `json:"duration"`
	ErrorRate float64       `json:"errorRate"`
	Requests  int64         `json:"requests,omitempty"`
}

// P95 returns the p95 latency or NaN when unavailable.
func (p PhaseSummary) P95() float64 {
	if p.Duration == nil {
		return math.NaN()
	}
	return Value(p.Duration.P95)
}

// StressStepResult is one step of the stress ramp.
type StressStepResult struct {
	RPS int `json:"rps"`
	PhaseSummary
	Passed bool `json:"passed"`
}

type StressResult struct {
	// MaxStableRPS is the highest passing step, nil when the first step failed.
	MaxStableRPS *int               `json:"maxStableRps"`
	Steps        []StressStepResult `json:"steps"`
}

// ColdStartResult is the outcome of one readiness probe.
type ColdStartResult struct {
	ReadyMs   *float64 `json:"readyMs"`
	Attempts  int      `json:"attempts"`
	Status    int      `json:"status"`
	Ready     bool     `json:"ready"`
	ErrorRate float64  `json:"errorRate"`
}

// IterationResult is one full trial for one service in one pass. It is
// never mutated once appended to the run list.
type IterationResult struct {
	Iteration int              `json:"iteration"`
	ColdStart *ColdStartResult `json:"coldStart,omitempty"`
	Warmup    PhaseSummary     `json:"warmup"`
	Fixed     PhaseSummary     `json:"fixed"`
	Stress    StressResult     `json:"stress"`
	Extreme   *PhaseSummary    `json:"extreme"`
}

// PhaseAggregate holds cross-iteration medians of one phase.
type PhaseAggregate struct {
	P95       *float64 `json:"p95"`
	P99       *float64 `json:"p99"`
	Avg       *float64 `json:"avg"`
	ErrorRate *float64 `json:"errorRate"`
}

type StressAggregate struct {
	MaxStableRPS *float64 `json:"maxStableRps"`
}

type ColdStartAggregate struct {
	ReadyMs           *float64 `json:"readyMs"`
	Attempts          *float64 `json:"attempts"`
	ErrorRate         *float64 `json:"errorRate"`
	SuccessfulSamples int      `json:"successfulColdSamples"`
	FailedSamples     int      `json:"failedColdSamples"`
}

// AggregateResult summarises all iterations of one service in one pass.
type AggregateResult struct {
	Fixed     PhaseAggregate      `json:"fixed"`
	Stress    StressAggregate     `json:"stress"`
	Extreme   *PhaseAggregate     `json:"extreme"`
	ColdStart *ColdStartAggregate `json:"coldStart,omitempty"`
}

// ServiceRuns maps service name to its iterations, in execution order.
type ServiceRuns map[string][]IterationResult

// ServiceAggregates maps service name to its aggregate.
type ServiceAggregates map[string]AggregateResult

// RunReport is the top-level artifact of a benchmark run.
type RunReport struct {
	GeneratedAt string                                `json:"generatedAt"`
	RunID       string                                `json:"runId"`
	Config      config.RunConfig                      `json:"config"`
	Passes      []config.PassKind                     `json:"passes"`
	RawRoot     string                                `json:"rawRoot"`
	Runs        map[config.PassKind]ServiceRuns       `json:"runs"`
	Aggregated  map[config.PassKind]ServiceAggregates `json:"aggregated"`
}

// Float boxes v, mapping non-finite values to nil.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value unboxes v, mapping nil to NaN.
func Value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
