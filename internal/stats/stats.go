package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lampbench/internal/report"
)

// Stats holds the real-time metrics of one phase
type Stats struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	// Arrivals that found no free worker at the pool ceiling
	Dropped uint64

	// Response body assertions, tracked apart from the error rate
	ChecksPass uint64
	ChecksFail uint64

	// Latency histograms (microseconds)
	ServiceTime *SafeHistogram
	TotalTime   *SafeHistogram

	// Queue wait is important for lag detection
	QueueWait *SafeHistogram

	errMu     sync.Mutex
	errCounts map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		ServiceTime: NewSafeHistogram(),
		TotalTime:   NewSafeHistogram(),
		QueueWait:   NewSafeHistogram(),
		errCounts:   make(map[string]uint64),
	}
}

// AddRequest records one request. failure is a short description of why an
// unsuccessful request failed and is ignored on success.
func (s *Stats) AddRequest(success bool, bytes int64, serviceTime, queueWait, totalTime time.Duration, failure string) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
		if failure != "" {
			s.errMu.Lock()
			s.errCounts[failure]++
			s.errMu.Unlock()
		}
	}
	if bytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(bytes))
	}

	s.ServiceTime.Record(serviceTime)
	s.QueueWait.Record(queueWait)
	s.TotalTime.Record(totalTime)
}

func (s *Stats) AddDropped() {
	atomic.AddUint64(&s.Dropped, 1)
}

func (s *Stats) AddCheck(ok bool) {
	if ok {
		atomic.AddUint64(&s.ChecksPass, 1)
	} else {
		atomic.AddUint64(&s.ChecksFail, 1)
	}
}

// ErrorRate is the fraction of failed requests, 0 when nothing was sent.
func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Fail)) / float64(reqs)
}

func (s *Stats) GetP50Service() float64 { return s.ServiceTime.QuantileMs(50) }
func (s *Stats) GetP90Service() float64 { return s.ServiceTime.QuantileMs(90) }
func (s *Stats) GetP95Service() float64 { return s.ServiceTime.QuantileMs(95) }
func (s *Stats) GetP99Service() float64 { return s.ServiceTime.QuantileMs(99) }

// QueueWaitAvgMs returns average queue wait in milliseconds
func (s *Stats) QueueWaitAvgMs() float64 {
	return s.QueueWait.MeanMs()
}

// ErrorCount is one failure description and how often it occurred.
type ErrorCount struct {
	Reason string
	Count  uint64
}

// GetErrorCounts returns failure reasons, most frequent first.
func (s *Stats) GetErrorCounts() []ErrorCount {
	s.errMu.Lock()
	out := make([]ErrorCount, 0, len(s.errCounts))
	for reason, n := range s.errCounts {
		out = append(out, ErrorCount{Reason: reason, Count: n})
	}
	s.errMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Document converts the phase metrics into a summary document for mode.
// The latency trend is omitted when no request completed, so readers see it
// as unavailable rather than zero.
func (s *Stats) Document(mode string, elapsed time.Duration) *report.Document {
	doc := report.NewDocument(mode)
	doc.State.TestRunDurationMs = float64(elapsed.Milliseconds())

	if s.ServiceTime.TotalCount() > 0 {
		doc.Set(report.DurationMetric(mode), report.MetricTrend, map[string]float64{
			"avg":   s.ServiceTime.MeanMs(),
			"min":   s.ServiceTime.MinMs(),
			"med":   s.ServiceTime.QuantileMs(50),
			"max":   s.ServiceTime.MaxMs(),
			"p(90)": s.ServiceTime.QuantileMs(90),
			"p(95)": s.ServiceTime.QuantileMs(95),
			"p(99)": s.ServiceTime.QuantileMs(99),
		})
	}

	// Rate semantics: a "pass" is a sample where the tracked condition
	// (an error) held.
	fails := atomic.LoadUint64(&s.Fail)
	success := atomic.LoadUint64(&s.Success)
	doc.Set(report.ErrorRateMetric(mode), report.MetricRate, map[string]float64{
		"rate":   s.ErrorRate(),
		"passes": float64(fails),
		"fails":  float64(success),
	})

	doc.Set(report.DroppedMetric(mode), report.MetricCounter, map[string]float64{
		"count": float64(atomic.LoadUint64(&s.Dropped)),
	})

	checksOK := atomic.LoadUint64(&s.ChecksPass)
	checksBad := atomic.LoadUint64(&s.ChecksFail)
	checkRate := 0.0
	if total := checksOK + checksBad; total > 0 {
		checkRate = float64(checksOK) / float64(total)
	}
	doc.Set(report.ChecksMetric(mode), report.MetricRate, map[string]float64{
		"rate":   checkRate,
		"passes": float64(checksOK),
		"fails":  float64(checksBad),
	})
	return doc
}
