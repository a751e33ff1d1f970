package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/dummy"
	"lampbench/internal/report"
	"lampbench/internal/runner"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----]", progressBar(0, 4))
	assert.Equal(t, "[██--]", progressBar(0.5, 4))
	assert.Equal(t, "[████]", progressBar(1.7, 4))
	assert.Equal(t, "[----]", progressBar(-1, 4))
}

func TestStart_RunsPhase(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{BasePath: "/v1"}))
	defer srv.Close()

	cfg, err := runner.ParseConfig(map[string]string{
		"RUN_MODE":   "fixed",
		"BASE_URL":   srv.URL,
		"TARGET_RPS": "20",
		"DURATION":   "500ms",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	r, doc, err := Start(context.Background(), cfg, &out)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Positive(t, r.Stats.Requests)
	assert.Positive(t, doc.PhaseSummary().Requests)
	assert.Contains(t, out.String(), "PHASE FIXED")
	assert.Contains(t, out.String(), "PHASE RESULTS")
}

func TestStart_ColdStart(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{BasePath: "/v1", StartupDelay: 150 * time.Millisecond}))
	defer srv.Close()

	cfg, err := runner.ParseConfig(map[string]string{
		"RUN_MODE":            report.ModeColdStart,
		"BASE_URL":            srv.URL,
		"COLD_START_INTERVAL": "50ms",
		"COLD_START_MAX_WAIT": "5s",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	_, doc, err := Start(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.True(t, doc.ColdStart().Ready)
	assert.Contains(t, out.String(), "Probe      : GET /health")
}

func TestPrintRanking(t *testing.T) {
	r := &report.RunReport{
		Passes: []config.PassKind{config.PassMemory, config.PassDatabase},
		Aggregated: map[config.PassKind]report.ServiceAggregates{
			config.PassMemory: {
				"slow": {Fixed: report.PhaseAggregate{P95: report.Float(40), ErrorRate: report.Float(0)}},
				"fast": {Fixed: report.PhaseAggregate{P95: report.Float(10), ErrorRate: report.Float(0)},
					Stress: report.StressAggregate{MaxStableRPS: report.Float(400)}},
			},
		},
	}
	var out bytes.Buffer
	PrintRanking(&out, r)

	s := out.String()
	assert.Contains(t, s, "Memory pass")
	assert.NotContains(t, s, "DB pass")
	assert.Less(t, strings.Index(s, "fast"), strings.Index(s, "slow"))
	assert.Contains(t, s, "10.00ms")
	assert.Contains(t, s, "400")
}
