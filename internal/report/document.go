package report

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Metric kinds used in a phase summary document.
const (
	MetricTrend   = "trend"
	MetricRate    = "rate"
	MetricCounter = "counter"
	MetricGauge   = "gauge"
)

// ModeColdStart is the run mode of the readiness probe.
const ModeColdStart = "coldstart"

// Metric is one named metric of a phase summary document.
type Metric struct {
	Type   string             `json:"type"`
	Values map[string]float64 `json:"values"`
}

// Document is the phase summary written by the Load Executor and read back
// by the orchestrator. Metric names are prefixed with the run mode, so the
// same document shape serves every phase.
type Document struct {
	Mode  string `json:"mode"`
	State struct {
		TestRunDurationMs float64 `json:"testRunDurationMs"`
	} `json:"state"`
	Metrics map[string]Metric `json:"metrics"`
}

func DurationMetric(mode string) string  { return mode + "_req_duration" }
func ErrorRateMetric(mode string) string { return mode + "_error_rate" }
func DroppedMetric(mode string) string   { return mode + "_dropped_iterations" }
func ChecksMetric(mode string) string    { return mode + "_checks" }

const (
	ColdStartReadyMetric    = "coldstart_ready_ms"
	ColdStartAttemptsMetric = "coldstart_attempts"
	ColdStartStatusMetric   = "coldstart_status"
)

// NewDocument returns an empty document for mode.
func NewDocument(mode string) *Document {
	return &Document{Mode: mode, Metrics: make(map[string]Metric)}
}

// Set records a metric.
func (d *Document) Set(name, kind string, values map[string]float64) {
	if d.Metrics == nil {
		d.Metrics = make(map[string]Metric)
	}
	d.Metrics[name] = Metric{Type: kind, Values: values}
}

func (d *Document) value(name, key string) *float64 {
	m, ok := d.Metrics[name]
	if !ok || m.Values == nil {
		return nil
	}
	v, ok := m.Values[key]
	if !ok {
		return nil
	}
	return Float(v)
}

// Trend extracts a latency distribution, nil if the metric is absent.
func (d *Document) Trend(name string) *LatencyStats {
	if _, ok := d.Metrics[name]; !ok {
		return nil
	}
	return &LatencyStats{
		Avg: d.value(name, "avg"),
		P95: d.value(name, "p(95)"),
		P99: d.value(name, "p(99)"),
		Min: d.value(name, "min"),
		Max: d.value(name, "max"),
	}
}

// PhaseSummary extracts the summary of the document's mode. A missing error
// rate is reported as zero.
func (d *Document) PhaseSummary() PhaseSummary {
	s := PhaseSummary{Duration: d.Trend(DurationMetric(d.Mode))}
	if r := d.value(ErrorRateMetric(d.Mode), "rate"); r != nil {
		s.ErrorRate = *r
	}
	passes := d.value(ErrorRateMetric(d.Mode), "passes")
	fails := d.value(ErrorRateMetric(d.Mode), "fails")
	if passes != nil && fails != nil {
		s.Requests = int64(*passes + *fails)
	}
	return s
}

// ColdStart extracts the probe outcome, nil if the document has none.
func (d *Document) ColdStart() *ColdStartResult {
	attempts := d.value(ColdStartAttemptsMetric, "count")
	if attempts == nil {
		return nil
	}
	res := &ColdStartResult{
		ReadyMs:  d.value(ColdStartReadyMetric, "value"),
		Attempts: int(*attempts),
	}
	if st := d.value(ColdStartStatusMetric, "value"); st != nil {
		res.Status = int(*st)
	}
	res.Ready = res.Status != 0
	if r := d.value(ErrorRateMetric(ModeColdStart), "rate"); r != nil {
		res.ErrorRate = *r
	}
	if !res.Ready {
		res.ReadyMs = nil
	}
	return res
}

// ReadDocument loads a phase summary document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading phase summary %s", path)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding phase summary %s", path)
	}
	return &doc, nil
}

// WriteFile stores the document atomically at path.
func (d *Document) WriteFile(path string) error {
	return WriteJSON(path, d)
}
