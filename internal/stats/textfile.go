package stats

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile exports the phase metrics in the Prometheus text format, for
// pickup by a node_exporter textfile collector or later inspection.
func (s *Stats) WriteTextfile(path, mode string) error {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_requests",
		Help:      "Requests sent during the phase, by outcome.",
	}, []string{"mode", "outcome"})
	latency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_request_duration_ms",
		Help:      "Request duration quantiles in milliseconds.",
	}, []string{"mode", "quantile"})
	total := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_total_duration_ms",
		Help:      "Quantiles of queue wait plus request duration in milliseconds.",
	}, []string{"mode", "quantile"})
	queueWait := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_queue_wait_avg_ms",
		Help:      "Mean delay between scheduled and actual request start.",
	}, []string{"mode"})
	dropped := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_dropped_iterations",
		Help:      "Arrivals dropped because no worker was available.",
	}, []string{"mode"})
	errorRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lampbench",
		Name:      "phase_error_rate",
		Help:      "Fraction of requests with an unexpected status.",
	}, []string{"mode"})
	reg.MustRegister(requests, latency, total, queueWait, dropped, errorRate)

	requests.WithLabelValues(mode, "success").Set(float64(atomic.LoadUint64(&s.Success)))
	requests.WithLabelValues(mode, "failure").Set(float64(atomic.LoadUint64(&s.Fail)))
	quantiles := map[string]float64{"0.5": 50, "0.9": 90, "0.95": 95, "0.99": 99}
	if s.ServiceTime.TotalCount() > 0 {
		for label, q := range quantiles {
			latency.WithLabelValues(mode, label).Set(s.ServiceTime.QuantileMs(q))
		}
	}
	if s.TotalTime.TotalCount() > 0 {
		for label, q := range quantiles {
			total.WithLabelValues(mode, label).Set(s.TotalTime.QuantileMs(q))
		}
	}
	queueWait.WithLabelValues(mode).Set(s.QueueWaitAvgMs())
	dropped.WithLabelValues(mode).Set(float64(atomic.LoadUint64(&s.Dropped)))
	errorRate.WithLabelValues(mode).Set(s.ErrorRate())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, reg), "writing metrics textfile %s", path)
}
