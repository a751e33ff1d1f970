// Package orchestrator drives services through the benchmark phases and
// collects the results into a run report.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lampbench/internal/aggregate"
	"lampbench/internal/config"
	"lampbench/internal/lampapi"
	"lampbench/internal/report"
	"lampbench/internal/runner"
	"lampbench/internal/shell"
)

// Prechecker verifies that a target answers the full CRUD cycle.
type Prechecker interface {
	Precheck(ctx context.Context, baseURL, basePath, authHeader string) error
}

// HTTPPrechecker runs the lamp API precheck over HTTP.
type HTTPPrechecker struct {
	Timeout time.Duration
}

func (p HTTPPrechecker) Precheck(ctx context.Context, baseURL, basePath, authHeader string) error {
	client := &http.Client{Timeout: p.Timeout, Transport: lampapi.NewTransport()}
	return lampapi.NewClient(baseURL, basePath, authHeader, client).Precheck(ctx)
}

// Orchestrator runs a benchmark. It is strictly sequential: one phase of one
// service at a time.
type Orchestrator struct {
	Config     *config.RunConfig
	Services   []config.ServiceDescriptor
	ResultsDir string
	RunID      string

	Executor   LoadExecutor
	Shell      shell.Runner
	Prechecker Prechecker

	// Rand drives service order shuffling.
	Rand *rand.Rand
	Now  func() time.Time
	Out  io.Writer
	Log  *logrus.Entry
}

// Run executes every pass in order and returns the report. It stops at the
// first failure: an unsupported pass, a service without a URL for a pass, a
// failed external command, a failed precheck or a failed load executor. No
// partial report is returned on failure.
//
// For each service and iteration it performs:
//  1. The pass specific setup command, if configured
//  2. The seed command, db pass only
//  3. The cold start probe, when enabled for this iteration
//  4. The CRUD precheck
//  5. Warmup, recorded but never used for ranking
//  6. The fixed phase, the primary measurement
//  7. The stress ramp, stopping at the first step that misses the SLO
//  8. The extreme phase, when enabled for this iteration
func (o *Orchestrator) Run(ctx context.Context, passes []config.PassKind) (*report.RunReport, error) {
	if len(passes) == 0 {
		var err error
		if passes, err = o.Config.PassKinds(); err != nil {
			return nil, err
		}
	}
	if err := o.validate(passes); err != nil {
		return nil, err
	}

	rawRoot := RawRoot(o.ResultsDir, o.RunID)
	rep := &report.RunReport{
		RunID:      o.RunID,
		Config:     *o.Config,
		Passes:     passes,
		RawRoot:    rawRoot,
		Runs:       make(map[config.PassKind]report.ServiceRuns, len(passes)),
		Aggregated: make(map[config.PassKind]report.ServiceAggregates, len(passes)),
	}

	o.Log.WithFields(logrus.Fields{"runId": o.RunID, "passes": passes, "services": len(o.Services)}).Info("starting benchmark run")
	for _, pass := range passes {
		runs := make(report.ServiceRuns, len(o.Services))
		for _, svc := range o.serviceOrder() {
			for iteration := 1; iteration <= o.Config.IterationsPerPass; iteration++ {
				res, err := o.runIteration(ctx, rawRoot, pass, svc, iteration)
				if err != nil {
					return nil, errors.Wrapf(err, "%s pass, service %s, iteration %d", pass, svc.Name, iteration)
				}
				runs[svc.Name] = append(runs[svc.Name], res)
			}
		}
		rep.Runs[pass] = runs
		rep.Aggregated[pass] = aggregate.Pass(runs)
		o.Log.WithField("pass", pass).Info("pass complete")
	}

	rep.GeneratedAt = Timestamp(o.Now())
	return rep, nil
}

func (o *Orchestrator) validate(passes []config.PassKind) error {
	for _, pass := range passes {
		if _, err := config.ParsePass(string(pass)); err != nil {
			return err
		}
		for _, svc := range o.Services {
			if _, err := svc.URL(pass); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) serviceOrder() []config.ServiceDescriptor {
	if !o.Config.RandomizeServiceOrder {
		return o.Services
	}
	return shuffle(o.Services, o.Rand)
}

type iteration struct {
	o       *Orchestrator
	pass    config.PassKind
	svc     config.ServiceDescriptor
	baseURL string
	number  int
	dir     string
	log     *logrus.Entry
}

func (o *Orchestrator) runIteration(ctx context.Context, rawRoot string, pass config.PassKind, svc config.ServiceDescriptor, n int) (report.IterationResult, error) {
	baseURL, err := svc.URL(pass)
	if err != nil {
		return report.IterationResult{}, err
	}
	it := &iteration{
		o:       o,
		pass:    pass,
		svc:     svc,
		baseURL: baseURL,
		number:  n,
		dir:     IterationDir(rawRoot, pass, svc.Name, n),
		log:     o.Log.WithFields(logrus.Fields{"pass": pass, "service": svc.Name, "iteration": n}),
	}
	fmt.Fprintf(o.Out, "\n=== %s :: %s :: iteration %d ===\n", pass.Title(), svc.Name, n)
	return it.run(ctx)
}

func (it *iteration) run(ctx context.Context) (report.IterationResult, error) {
	cfg := it.o.Config
	res := report.IterationResult{Iteration: it.number}

	if cmd := it.svc.SetupCommand(it.pass); cmd != "" {
		it.log.Info("running setup command")
		if err := it.o.Shell.Run(ctx, shell.Script(cmd)); err != nil {
			return res, errors.Wrap(err, "setup")
		}
	}
	if it.pass.Persistent() {
		if cmd := it.svc.SeedCommand(cfg.DBSeedCommand); cmd != "" {
			it.log.Info("running seed command")
			if err := it.o.Shell.Run(ctx, shell.Script(cmd)); err != nil {
				return res, errors.Wrap(err, "seed")
			}
		}
	}

	if cfg.ColdStart.Enabled && (cfg.ColdStart.RunPerIteration || it.number == 1) {
		cs, err := it.coldStart(ctx)
		if err != nil {
			return res, err
		}
		res.ColdStart = &cs
	}

	it.log.Info("running CRUD precheck")
	if err := it.o.Prechecker.Precheck(ctx, it.baseURL, cfg.BasePath, it.svc.AuthHeader); err != nil {
		return res, err
	}

	var err error
	if res.Warmup, err = it.phase(ctx, "warmup", "warmup", cfg.Warmup.RPS, cfg.Warmup.Duration); err != nil {
		return res, err
	}
	if res.Fixed, err = it.phase(ctx, "fixed", "fixed", cfg.Fixed.RPS, cfg.Fixed.Duration); err != nil {
		return res, err
	}
	if res.Stress, err = it.stress(ctx); err != nil {
		return res, err
	}

	if cfg.Extreme.Enabled && (cfg.Extreme.RunPerIteration || it.number == 1) {
		name := fmt.Sprintf("extreme-%d", cfg.Extreme.RPS)
		ext, err := it.phase(ctx, name, "extreme", cfg.Extreme.RPS, cfg.Extreme.Duration)
		if err != nil {
			return res, err
		}
		res.Extreme = &ext
	}
	return res, nil
}

// stress walks the ascending rate steps and stops at the first one that
// misses the SLO. The highest passing step is the max stable rate.
func (it *iteration) stress(ctx context.Context) (report.StressResult, error) {
	cfg := it.o.Config
	var out report.StressResult
	for _, rps := range cfg.Stress.RPSSteps {
		summary, err := it.phase(ctx, fmt.Sprintf("stress-%d", rps), "stress", rps, cfg.Stress.StepDuration)
		if err != nil {
			return out, err
		}
		passed := MeetsSLO(summary, cfg.SLO)
		out.Steps = append(out.Steps, report.StressStepResult{RPS: rps, PhaseSummary: summary, Passed: passed})
		it.log.WithFields(logrus.Fields{"rps": rps, "passed": passed}).Info("stress step complete")
		if !passed {
			break
		}
		stable := rps
		out.MaxStableRPS = &stable
	}
	return out, nil
}

// MeetsSLO reports whether a phase had a finite p95 within the latency
// objective and an error rate within the error objective.
func MeetsSLO(s report.PhaseSummary, slo config.SLOConfig) bool {
	p95 := s.P95()
	if math.IsNaN(p95) || math.IsInf(p95, 0) {
		return false
	}
	return p95 <= slo.P95Ms && s.ErrorRate <= slo.ErrorRate
}

func (it *iteration) request(name, mode string, rps int, duration string) (PhaseRequest, error) {
	cfg := it.o.Config
	d, err := time.ParseDuration(duration)
	if err != nil {
		return PhaseRequest{}, &config.ConfigurationError{Field: mode + ".duration", Reason: err.Error()}
	}
	timeout, err := time.ParseDuration(cfg.Workload.RequestTimeout)
	if err != nil {
		return PhaseRequest{}, &config.ConfigurationError{Field: "workload.requestTimeout", Reason: err.Error()}
	}
	w := cfg.Workload
	env := runner.Config{
		Mode:            mode,
		BaseURL:         it.baseURL,
		BasePath:        cfg.BasePath,
		TargetRPS:       rps,
		Duration:        d,
		PageSize:        w.PageSize,
		SeedFetchPages:  w.SeedFetchPages,
		SeedPageSize:    w.SeedPageSize,
		ListWeight:      w.ListPercent,
		GetWeight:       w.GetPercent,
		CreateWeight:    w.CreatePercent,
		UpdateWeight:    w.UpdatePercent,
		DeleteWeight:    w.DeletePercent,
		AuthHeader:      it.svc.AuthHeader,
		PreAllocatedVUs: w.PreAllocated,
		MaxVUs:          w.MaxVUs,
		RequestTimeout:  timeout,
	}
	return PhaseRequest{
		Pass:        it.pass,
		Service:     it.svc.Name,
		Iteration:   it.number,
		Name:        name,
		Env:         env,
		SummaryPath: filepath.Join(it.dir, name+".json"),
		MetricsPath: filepath.Join(it.dir, name+".prom"),
	}, nil
}

func (it *iteration) phase(ctx context.Context, name, mode string, rps int, duration string) (report.PhaseSummary, error) {
	req, err := it.request(name, mode, rps, duration)
	if err != nil {
		return report.PhaseSummary{}, err
	}
	log := it.log.WithField("phase", name)
	log.WithFields(logrus.Fields{"rps": rps, "duration": req.Env.Duration}).Info("starting phase")

	summary, err := it.o.Executor.RunPhase(ctx, req)
	if err != nil {
		return summary, err
	}
	log.WithFields(logrus.Fields{"p95": summary.P95(), "errorRate": summary.ErrorRate}).Info("phase complete")
	return summary, nil
}

func (it *iteration) coldStart(ctx context.Context) (report.ColdStartResult, error) {
	cs := it.o.Config.ColdStart
	req, err := it.request(report.ModeColdStart, report.ModeColdStart, 1, cs.MaxWait)
	if err != nil {
		return report.ColdStartResult{}, err
	}
	interval, err := time.ParseDuration(cs.Interval)
	if err != nil {
		return report.ColdStartResult{}, &config.ConfigurationError{Field: "coldStart.interval", Reason: err.Error()}
	}
	req.Env.ColdStartEndpoint = cs.Endpoint
	req.Env.ColdStartInterval = interval
	req.Env.ColdStartMaxWait = req.Env.Duration
	req.Env.ColdStartExpectedStatus = cs.ExpectedStatus

	log := it.log.WithField("phase", report.ModeColdStart)
	log.Info("probing cold start")
	res, err := it.o.Executor.ProbeColdStart(ctx, req)
	if err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{"ready": res.Ready, "attempts": res.Attempts}).Info("cold start probe complete")
	return res, nil
}
