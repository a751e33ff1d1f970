package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/report"
	"lampbench/internal/runner"
	"lampbench/internal/shell"
)

// scriptedShell stands in for the executor process: it writes doc to the
// path given with --summary-export.
type scriptedShell struct {
	doc  *report.Document
	err  error
	last shell.Command
}

func (s *scriptedShell) Run(_ context.Context, cmd shell.Command) error {
	s.last = cmd
	if s.err != nil {
		return s.err
	}
	for i, arg := range cmd.Args {
		if arg == "--summary-export" && s.doc != nil {
			return s.doc.WriteFile(cmd.Args[i+1])
		}
	}
	return nil
}

func phaseRequest(t *testing.T, mode string) PhaseRequest {
	dir := t.TempDir()
	return PhaseRequest{
		Name:        mode,
		Env:         runner.Config{Mode: mode, BaseURL: "http://svc", TargetRPS: 10, Duration: time.Second},
		SummaryPath: filepath.Join(dir, mode+".json"),
		MetricsPath: filepath.Join(dir, mode+".prom"),
	}
}

func TestProcessExecutor_RunPhase(t *testing.T) {
	doc := report.NewDocument("fixed")
	doc.Set(report.DurationMetric("fixed"), report.MetricTrend, map[string]float64{"avg": 5, "p(95)": 9, "p(99)": 12})
	doc.Set(report.ErrorRateMetric("fixed"), report.MetricRate, map[string]float64{"rate": 0.25, "passes": 1, "fails": 3})
	sh := &scriptedShell{doc: doc}

	ex, err := NewProcessExecutor([]string{"lampbench", "exec"}, sh)
	require.NoError(t, err)

	req := phaseRequest(t, "fixed")
	summary, err := ex.RunPhase(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 9.0, summary.P95())
	assert.Equal(t, 0.25, summary.ErrorRate)
	assert.Equal(t, int64(4), summary.Requests)

	assert.Equal(t, []string{"lampbench", "exec", "--summary-export", req.SummaryPath}, sh.last.Args)
	assert.Contains(t, sh.last.Env, "RUN_MODE=fixed")
	assert.Contains(t, sh.last.Env, "TARGET_RPS=10")
	assert.Contains(t, sh.last.Env, "METRICS_TEXTFILE="+req.MetricsPath)
}

func TestProcessExecutor_ShadowsParentEnvironment(t *testing.T) {
	t.Setenv("AUTH_HEADER", "Bearer from-parent")
	t.Setenv("MAX_VUS", "1")

	// $1 is --summary-export and $2 the summary path.
	script := `printf '%s|%s' "$AUTH_HEADER" "$MAX_VUS" > "$2.env" && printf '{"mode":"fixed","metrics":{}}' > "$2"`
	sh := &shell.ExecRunner{Stdout: io.Discard, Stderr: io.Discard, Log: logrus.NewEntry(logrus.New())}
	ex, err := NewProcessExecutor([]string{"sh", "-c", script, "sh"}, sh)
	require.NoError(t, err)

	req := phaseRequest(t, "fixed")
	_, err = ex.RunPhase(context.Background(), req)
	require.NoError(t, err)

	seen, err := os.ReadFile(req.SummaryPath + ".env")
	require.NoError(t, err)
	assert.Equal(t, "|0", string(seen))
}

func TestProcessExecutor_CommandFailure(t *testing.T) {
	sh := &scriptedShell{err: &shell.ExternalCommandError{Command: "lampbench exec", ExitCode: 1}}
	ex, err := NewProcessExecutor([]string{"lampbench", "exec"}, sh)
	require.NoError(t, err)

	_, err = ex.RunPhase(context.Background(), phaseRequest(t, "stress-100"))
	var le *LoadExecutorError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "stress-100", le.Phase)

	var ce *shell.ExternalCommandError
	assert.True(t, errors.As(err, &ce))
}

func TestProcessExecutor_MissingSummary(t *testing.T) {
	ex, err := NewProcessExecutor([]string{"true"}, &scriptedShell{})
	require.NoError(t, err)

	_, err = ex.RunPhase(context.Background(), phaseRequest(t, "warmup"))
	var le *LoadExecutorError
	assert.True(t, errors.As(err, &le))
}

func TestProcessExecutor_ProbeColdStart(t *testing.T) {
	doc := report.NewDocument(report.ModeColdStart)
	doc.Set(report.ColdStartReadyMetric, report.MetricGauge, map[string]float64{"value": 420})
	doc.Set(report.ColdStartAttemptsMetric, report.MetricCounter, map[string]float64{"count": 2})
	doc.Set(report.ColdStartStatusMetric, report.MetricGauge, map[string]float64{"value": 200})
	ex, err := NewProcessExecutor([]string{"lampbench", "exec"}, &scriptedShell{doc: doc})
	require.NoError(t, err)

	res, err := ex.ProbeColdStart(context.Background(), phaseRequest(t, report.ModeColdStart))
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, 420.0, *res.ReadyMs)

	empty, err := NewProcessExecutor([]string{"lampbench", "exec"}, &scriptedShell{doc: report.NewDocument(report.ModeColdStart)})
	require.NoError(t, err)
	_, err = empty.ProbeColdStart(context.Background(), phaseRequest(t, report.ModeColdStart))
	var le *LoadExecutorError
	assert.True(t, errors.As(err, &le))
}

func TestNewProcessExecutor_DefaultsToSelf(t *testing.T) {
	ex, err := NewProcessExecutor(nil, &scriptedShell{})
	require.NoError(t, err)
	require.Len(t, ex.Command, 2)
	assert.Equal(t, "exec", ex.Command[1])
}
