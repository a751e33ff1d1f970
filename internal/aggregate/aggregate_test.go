package aggregate

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/report"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want *float64
	}{
		{"even count", []float64{2, 4}, report.Float(3)},
		{"odd count", []float64{1, 2, 3}, report.Float(2)},
		{"unsorted", []float64{100, 120, 110}, report.Float(110)},
		{"empty", nil, nil},
		{"only NaN", []float64{math.NaN(), math.Inf(1)}, nil},
		{"NaN filtered", []float64{math.NaN(), 5, 7, math.Inf(-1)}, report.Float(6)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Median(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestMedian_WithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(20)
		vals := make([]float64, n)
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := range vals {
			vals[j] = rng.Float64() * 1000
			lo = math.Min(lo, vals[j])
			hi = math.Max(hi, vals[j])
		}
		m := Median(vals)
		require.NotNil(t, m)
		assert.GreaterOrEqual(t, *m, lo)
		assert.LessOrEqual(t, *m, hi)
	}
}

func summary(p95, p99, avg, errRate float64) report.PhaseSummary {
	return report.PhaseSummary{
		Duration:  &report.LatencyStats{P95: report.Float(p95), P99: report.Float(p99), Avg: report.Float(avg)},
		ErrorRate: errRate,
	}
}

func intPtr(v int) *int { return &v }

func TestAggregate_FixedAndStress(t *testing.T) {
	runs := []report.IterationResult{
		{Iteration: 1, Fixed: summary(100, 200, 50, 0.01), Stress: report.StressResult{MaxStableRPS: intPtr(100)}},
		{Iteration: 2, Fixed: summary(120, 220, 60, 0.00), Stress: report.StressResult{MaxStableRPS: intPtr(200)}},
		{Iteration: 3, Fixed: summary(110, 210, 55, 0.02), Stress: report.StressResult{}},
	}

	agg := Aggregate(runs)
	assert.Equal(t, 110.0, *agg.Fixed.P95)
	assert.Equal(t, 210.0, *agg.Fixed.P99)
	assert.Equal(t, 55.0, *agg.Fixed.Avg)
	assert.Equal(t, 0.01, *agg.Fixed.ErrorRate)
	// The failed first step counts as unavailable, leaving {100, 200}.
	assert.Equal(t, 150.0, *agg.Stress.MaxStableRPS)
	assert.Nil(t, agg.Extreme)
	assert.Nil(t, agg.ColdStart)
}

func TestAggregate_ExtremeOnlyOverRanIterations(t *testing.T) {
	ext := summary(900, 1500, 400, 0.2)
	runs := []report.IterationResult{
		{Iteration: 1, Fixed: summary(10, 20, 5, 0), Extreme: &ext},
		{Iteration: 2, Fixed: summary(12, 22, 6, 0)},
		{Iteration: 3, Fixed: summary(11, 21, 7, 0)},
	}

	agg := Aggregate(runs)
	require.NotNil(t, agg.Extreme)
	assert.Equal(t, 900.0, *agg.Extreme.P95)
	assert.Equal(t, 0.2, *agg.Extreme.ErrorRate)
}

func TestAggregate_MissingDuration(t *testing.T) {
	runs := []report.IterationResult{{Iteration: 1, Fixed: report.PhaseSummary{ErrorRate: 1}}}

	agg := Aggregate(runs)
	assert.Nil(t, agg.Fixed.P95)
	assert.Nil(t, agg.Fixed.Avg)
	assert.Equal(t, 1.0, *agg.Fixed.ErrorRate)
	assert.Nil(t, agg.Stress.MaxStableRPS)
}

func TestAggregate_ColdStart(t *testing.T) {
	runs := []report.IterationResult{
		{Iteration: 1, ColdStart: &report.ColdStartResult{ReadyMs: report.Float(800), Attempts: 3, Status: 200, Ready: true, ErrorRate: 2.0 / 3}},
		{Iteration: 2, ColdStart: &report.ColdStartResult{Attempts: 120, ErrorRate: 1}},
		{Iteration: 3, ColdStart: &report.ColdStartResult{ReadyMs: report.Float(1200), Attempts: 5, Status: 200, Ready: true, ErrorRate: 0.8}},
	}

	agg := Aggregate(runs)
	require.NotNil(t, agg.ColdStart)
	assert.Equal(t, 1000.0, *agg.ColdStart.ReadyMs)
	assert.Equal(t, 5.0, *agg.ColdStart.Attempts)
	assert.Equal(t, 0.8, *agg.ColdStart.ErrorRate)
	assert.Equal(t, 2, agg.ColdStart.SuccessfulSamples)
	assert.Equal(t, 1, agg.ColdStart.FailedSamples)
}

func TestPass_Idempotent(t *testing.T) {
	runs := report.ServiceRuns{
		"alpha": {{Iteration: 1, Fixed: summary(10, 20, 5, 0)}, {Iteration: 2, Fixed: summary(14, 24, 7, 0)}},
		"beta":  {{Iteration: 1, Fixed: summary(30, 40, 15, 0.5)}},
	}

	first, err := json.Marshal(Pass(runs))
	require.NoError(t, err)
	second, err := json.Marshal(Pass(runs))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Len(t, runs["alpha"], 2, "runs must not be modified")
}

func TestDeltas(t *testing.T) {
	aggregated := map[config.PassKind]report.ServiceAggregates{
		config.PassMemory: {
			"beta":  {Fixed: report.PhaseAggregate{P95: report.Float(10)}},
			"alpha": {Fixed: report.PhaseAggregate{P95: report.Float(20)}},
			"gamma": {Fixed: report.PhaseAggregate{P95: report.Float(5)}},
		},
		config.PassDatabase: {
			"alpha": {Fixed: report.PhaseAggregate{P95: report.Float(35)}},
			"beta":  {Fixed: report.PhaseAggregate{}},
		},
	}

	deltas := Deltas(aggregated)
	require.Len(t, deltas, 2)
	assert.Equal(t, "alpha", deltas[0].Service)
	assert.Equal(t, 15.0, *deltas[0].DeltaMs)
	assert.Equal(t, "beta", deltas[1].Service)
	assert.Nil(t, deltas[1].DeltaMs)
}
