package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "run-report.json")
	summaryPath := filepath.Join(dir, "out", "summary.md")
	require.NoError(t, report.WriteJSON(reportPath, &report.RunReport{
		GeneratedAt: "2025-01-01T00:00:00.000Z",
		RunID:       "run",
		Passes:      []config.PassKind{config.PassMemory},
		Aggregated: map[config.PassKind]report.ServiceAggregates{
			config.PassMemory: {"go": {Fixed: report.PhaseAggregate{P95: report.Float(12)}}},
		},
	}))

	out, err := execute(t, "summary", reportPath, summaryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary written to "+summaryPath)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| 1 | go | 12.00 |")
}

func TestSummaryCommand_MissingReport(t *testing.T) {
	_, err := execute(t, "summary", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDeployCommand_DryRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	svcPath := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
cloudRun:
  projectId: bench
  maxInstances: 2
  minInstances: 0
  concurrency: 80
  cpu: "1"
  memory: 512Mi
  timeout: 300s
`), 0o644))
	require.NoError(t, os.WriteFile(svcPath, []byte(`
- name: go
  memoryUrl: http://localhost:8080
  cloudRunService: lamp-go
`), 0o644))

	out, err := execute(t, "deploy", "--config", cfgPath, "--services", svcPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[dry-run] gcloud run services update lamp-go --project bench --region us-central1")
}

func TestLogLevelValidation(t *testing.T) {
	_, err := execute(t, "summary", "--log-level", "loud", filepath.Join(t.TempDir(), "x.json"))
	var ce *config.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}
