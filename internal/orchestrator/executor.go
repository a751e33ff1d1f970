package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"lampbench/internal/config"
	"lampbench/internal/report"
	"lampbench/internal/runner"
	"lampbench/internal/shell"
)

// PhaseRequest describes one load executor invocation.
type PhaseRequest struct {
	Pass      config.PassKind
	Service   string
	Iteration int
	// Name is the raw artifact stem, e.g. "fixed" or "stress-200".
	Name string
	Env  runner.Config

	SummaryPath string
	MetricsPath string
}

// LoadExecutor runs phases against a target. Implementations block until the
// phase is over.
type LoadExecutor interface {
	RunPhase(ctx context.Context, req PhaseRequest) (report.PhaseSummary, error)
	ProbeColdStart(ctx context.Context, req PhaseRequest) (report.ColdStartResult, error)
}

// LoadExecutorError reports a phase whose executor failed or produced no
// usable summary.
type LoadExecutorError struct {
	Phase string
	Err   error
}

func (e *LoadExecutorError) Error() string {
	return fmt.Sprintf("load executor failed in phase %s: %v", e.Phase, e.Err)
}

func (e *LoadExecutorError) Unwrap() error { return e.Err }

// ProcessExecutor runs each phase as a child process. The phase is described
// to the child through its environment; the child writes the summary document
// to the path given with --summary-export and a metrics textfile to
// METRICS_TEXTFILE.
type ProcessExecutor struct {
	Command []string
	Shell   shell.Runner
}

// NewProcessExecutor uses command, or this binary's exec subcommand when
// command is empty.
func NewProcessExecutor(command []string, sh shell.Runner) (*ProcessExecutor, error) {
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "locating executable")
		}
		command = []string{self, "exec"}
	}
	return &ProcessExecutor{Command: command, Shell: sh}, nil
}

func (e *ProcessExecutor) run(ctx context.Context, req PhaseRequest) (*report.Document, error) {
	args := append(append([]string{}, e.Command...), "--summary-export", req.SummaryPath)
	env := req.Env.Environ()
	if req.MetricsPath != "" {
		env = append(env, "METRICS_TEXTFILE="+req.MetricsPath)
	}
	if err := e.Shell.Run(ctx, shell.Command{Args: args, Env: env}); err != nil {
		return nil, &LoadExecutorError{Phase: req.Name, Err: err}
	}
	doc, err := report.ReadDocument(req.SummaryPath)
	if err != nil {
		return nil, &LoadExecutorError{Phase: req.Name, Err: err}
	}
	return doc, nil
}

func (e *ProcessExecutor) RunPhase(ctx context.Context, req PhaseRequest) (report.PhaseSummary, error) {
	doc, err := e.run(ctx, req)
	if err != nil {
		return report.PhaseSummary{}, err
	}
	return doc.PhaseSummary(), nil
}

func (e *ProcessExecutor) ProbeColdStart(ctx context.Context, req PhaseRequest) (report.ColdStartResult, error) {
	doc, err := e.run(ctx, req)
	if err != nil {
		return report.ColdStartResult{}, err
	}
	res := doc.ColdStart()
	if res == nil {
		return report.ColdStartResult{}, &LoadExecutorError{Phase: req.Name, Err: errors.New("summary has no cold start metrics")}
	}
	return *res, nil
}
