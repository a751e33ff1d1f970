package report

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
)

func TestDocument_PhaseSummary(t *testing.T) {
	doc := NewDocument("fixed")
	doc.Set(DurationMetric("fixed"), MetricTrend, map[string]float64{
		"avg": 12.5, "min": 1, "med": 10, "max": 90, "p(90)": 30, "p(95)": 42, "p(99)": 80,
	})
	doc.Set(ErrorRateMetric("fixed"), MetricRate, map[string]float64{"rate": 0.02, "passes": 2, "fails": 98})

	path := filepath.Join(t.TempDir(), "raw", "fixed.json")
	require.NoError(t, doc.WriteFile(path))

	loaded, err := ReadDocument(path)
	require.NoError(t, err)

	s := loaded.PhaseSummary()
	require.NotNil(t, s.Duration)
	assert.Equal(t, 42.0, *s.Duration.P95)
	assert.Equal(t, 80.0, *s.Duration.P99)
	assert.Equal(t, 12.5, *s.Duration.Avg)
	assert.Equal(t, 0.02, s.ErrorRate)
	assert.Equal(t, int64(100), s.Requests)
	assert.Equal(t, 42.0, s.P95())
}

func TestDocument_MissingMetrics(t *testing.T) {
	doc := NewDocument("stress")

	s := doc.PhaseSummary()
	assert.Nil(t, s.Duration)
	assert.Equal(t, 0.0, s.ErrorRate)
	assert.True(t, math.IsNaN(s.P95()))
	assert.Nil(t, doc.ColdStart())
}

func TestDocument_ColdStart(t *testing.T) {
	doc := NewDocument(ModeColdStart)
	doc.Set(ColdStartReadyMetric, MetricGauge, map[string]float64{"value": 1500})
	doc.Set(ColdStartAttemptsMetric, MetricCounter, map[string]float64{"count": 4})
	doc.Set(ColdStartStatusMetric, MetricGauge, map[string]float64{"value": 200})
	doc.Set(ErrorRateMetric(ModeColdStart), MetricRate, map[string]float64{"rate": 0.75})

	cs := doc.ColdStart()
	require.NotNil(t, cs)
	assert.True(t, cs.Ready)
	assert.Equal(t, 4, cs.Attempts)
	assert.Equal(t, 200, cs.Status)
	assert.Equal(t, 1500.0, *cs.ReadyMs)

	notReady := NewDocument(ModeColdStart)
	notReady.Set(ColdStartAttemptsMetric, MetricCounter, map[string]float64{"count": 10})
	notReady.Set(ColdStartStatusMetric, MetricGauge, map[string]float64{"value": 0})
	cs = notReady.ColdStart()
	require.NotNil(t, cs)
	assert.False(t, cs.Ready)
	assert.Equal(t, 0, cs.Status)
	assert.Nil(t, cs.ReadyMs)
}

func TestWriteJSON_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-report.json")

	first := &RunReport{RunID: "a", Passes: []config.PassKind{config.PassMemory}}
	require.NoError(t, WriteJSON(path, first))
	second := &RunReport{RunID: "b", Passes: []config.PassKind{config.PassDatabase}}
	require.NoError(t, WriteJSON(path, second))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "b", loaded.RunID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFloat(t *testing.T) {
	assert.Nil(t, Float(math.NaN()))
	assert.Nil(t, Float(math.Inf(1)))
	assert.Equal(t, 3.0, *Float(3))
	assert.True(t, math.IsNaN(Value(nil)))
}

func TestStressStepResult_JSONShape(t *testing.T) {
	step := StressStepResult{
		RPS:          100,
		PhaseSummary: PhaseSummary{Duration: &LatencyStats{P95: Float(20)}, ErrorRate: 0.001},
		Passed:       true,
	}
	data, err := json.Marshal(step)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 100.0, raw["rps"])
	assert.Equal(t, true, raw["passed"])
	assert.Equal(t, 0.001, raw["errorRate"])
	assert.Contains(t, raw, "duration")
}
