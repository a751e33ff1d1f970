package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lampbench/internal/lampapi"
	"lampbench/internal/report"
)

// ProbeResult is the outcome of a cold start probe.
type ProbeResult struct {
	ReadyAfter time.Duration
	Attempts   int
	// Status is the status that ended the probe, 0 when the target never
	// became ready.
	Status int
}

func (p ProbeResult) Ready() bool { return p.Status != 0 }

func (p ProbeResult) annotate(doc *report.Document) {
	if p.Ready() {
		doc.Set(report.ColdStartReadyMetric, report.MetricGauge, map[string]float64{
			"value": float64(p.ReadyAfter.Microseconds()) / 1000.0,
		})
	}
	doc.Set(report.ColdStartAttemptsMetric, report.MetricCounter, map[string]float64{"count": float64(p.Attempts)})
	doc.Set(report.ColdStartStatusMetric, report.MetricGauge, map[string]float64{"value": float64(p.Status)})
}

// Probe polls the cold start endpoint every ColdStartInterval until it answers
// ColdStartExpectedStatus or ColdStartMaxWait has passed since the first
// attempt. Every attempt is tracked; attempts that are not ready count as
// errors.
func (r *Runner) Probe(ctx context.Context) ProbeResult {
	probe := lampapi.NewClient(r.Cfg.BaseURL, "", r.Cfg.AuthHeader, &http.Client{Transport: lampapi.NewTransport()})
	start := time.Now()
	deadline := start.Add(r.Cfg.ColdStartMaxWait)

	var res ProbeResult
	for {
		res.Attempts++
		attemptCtx, cancel := context.WithDeadline(ctx, deadline)
		if r.Cfg.RequestTimeout > 0 && time.Until(deadline) > r.Cfg.RequestTimeout {
			cancel()
			attemptCtx, cancel = context.WithTimeout(ctx, r.Cfg.RequestTimeout)
		}
		sent := time.Now()
		resp, err := probe.Do(attemptCtx, http.MethodGet, r.Cfg.ColdStartEndpoint, nil)
		cancel()
		elapsed := time.Since(sent)

		ready := err == nil && resp.Status == r.Cfg.ColdStartExpectedStatus
		failure := ""
		switch {
		case err != nil:
			failure = "probe: " + classify(err)
		case !ready:
			failure = fmt.Sprintf("probe: status %d", resp.Status)
		}
		r.Stats.AddRequest(ready, 0, elapsed, 0, elapsed, failure)

		if ready {
			res.Status = resp.Status
			res.ReadyAfter = time.Since(start)
			r.Log.WithField("attempts", res.Attempts).Infof("target ready after %s", res.ReadyAfter.Round(time.Millisecond))
			return res
		}
		if ctx.Err() != nil || !time.Now().Add(r.Cfg.ColdStartInterval).Before(deadline) {
			r.Log.WithField("attempts", res.Attempts).Warn("target did not become ready before the deadline")
			return res
		}

		timer := time.NewTimer(r.Cfg.ColdStartInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res
		case <-timer.C:
		}
	}
}
