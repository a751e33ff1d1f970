// Package runner generates open-loop lamp API load for a single phase.
package runner

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"lampbench/internal/lampapi"
	"lampbench/internal/report"
	"lampbench/internal/stats"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Dropped  uint64
	Inflight int64
	Workers  int64

	// Pre-calculated percentiles for the UI (cheap copy)
	P50ServiceMs float64
	P90ServiceMs float64
	P99ServiceMs float64
	MaxServiceMs float64

	AvgQueueWaitMs float64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type Runner struct {
	Cfg    Config
	Stats  *stats.Stats
	Client *lampapi.Client
	Log    *logrus.Entry

	inflight int64
	workers  int64

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, updates StatsUpdateChan) *Runner {
	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: lampapi.NewTransport(),
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:     cfg,
		Stats:   stats.NewStats(),
		Client:  lampapi.NewClient(cfg.BaseURL, cfg.BasePath, cfg.AuthHeader, client),
		Log:     logrus.WithField("phase", cfg.Mode),
		Updates: updates,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

// Snapshot copies the current counters and percentiles.
func (r *Runner) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:       atomic.LoadUint64(&r.Stats.Requests),
		Success:        atomic.LoadUint64(&r.Stats.Success),
		Fail:           atomic.LoadUint64(&r.Stats.Fail),
		Dropped:        atomic.LoadUint64(&r.Stats.Dropped),
		Inflight:       atomic.LoadInt64(&r.inflight),
		Workers:        atomic.LoadInt64(&r.workers),
		P50ServiceMs:   r.Stats.GetP50Service(),
		P90ServiceMs:   r.Stats.GetP90Service(),
		P99ServiceMs:   r.Stats.GetP99Service(),
		MaxServiceMs:   r.Stats.ServiceTime.MaxMs(),
		AvgQueueWaitMs: r.Stats.QueueWaitAvgMs(),
	}
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, the consumer acts as backpressure
	}
}

// Run executes the phase described by Cfg and returns its summary document.
// Load modes run for Cfg.Duration; the cold start mode runs until the target
// is ready or the probe deadline passes.
func (r *Runner) Run(ctx context.Context) (*report.Document, error) {
	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	start := time.Now()
	if r.Cfg.Mode == report.ModeColdStart {
		res := r.Probe(ctx)
		doc := r.Stats.Document(r.Cfg.Mode, time.Since(start))
		res.annotate(doc)
		return doc, ctx.Err()
	}

	seeds := r.SeedIDs(ctx)
	r.Log.WithField("seedIds", len(seeds)).Debug("workload setup complete")

	r.runRPS(ctx, seeds)
	return r.Stats.Document(r.Cfg.Mode, time.Since(start)), ctx.Err()
}

// runRPS schedules arrivals at TargetRPS for Duration, independent of how
// fast the target answers. Each arrival is handed to an idle worker; when none
// is idle the pool grows up to its ceiling, beyond which arrivals are dropped.
func (r *Runner) runRPS(ctx context.Context, seeds []string) {
	preAllocated, maxWorkers := r.Cfg.Workers()
	p := newPool(ctx, r, seeds, maxWorkers)
	for i := 0; i < preAllocated; i++ {
		p.spawn(nil)
	}

	limiter := rate.NewLimiter(rate.Limit(r.Cfg.TargetRPS), 1)
	deadline := time.Now().Add(r.Cfg.Duration)

	for {
		now := time.Now()
		res := limiter.ReserveN(now, 1)
		scheduled := now.Add(res.DelayFrom(now))
		if !scheduled.Before(deadline) {
			res.CancelAt(now)
			break
		}
		if wait := time.Until(scheduled); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				p.close()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			break
		}
		p.dispatch(scheduled)
	}
	p.close()
}

// pool is the arena of worker slots. Slots are allocated once at the pool
// ceiling; a worker only ever touches its own slot.
type pool struct {
	ctx     context.Context
	r       *Runner
	seeds   []string
	jobs    chan time.Time
	slots   []*worker
	started int
	wg      sync.WaitGroup
}

func newPool(ctx context.Context, r *Runner, seeds []string, maxWorkers int) *pool {
	return &pool{
		ctx:   ctx,
		r:     r,
		seeds: seeds,
		jobs:  make(chan time.Time),
		slots: make([]*worker, maxWorkers),
	}
}

// spawn starts the next worker, optionally with a first arrival. It reports
// false when the pool is at its ceiling.
func (p *pool) spawn(first *time.Time) bool {
	if p.started >= len(p.slots) {
		return false
	}
	w := newWorker(p.started, p.r, p.seeds)
	p.slots[p.started] = w
	p.started++
	atomic.AddInt64(&p.r.workers, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if first != nil {
			w.iterate(p.ctx, *first)
		}
		for scheduled := range p.jobs {
			w.iterate(p.ctx, scheduled)
		}
	}()
	return true
}

func (p *pool) dispatch(scheduled time.Time) {
	select {
	case p.jobs <- scheduled:
		return
	default:
	}
	if !p.spawn(&scheduled) {
		p.r.Stats.AddDropped()
	}
}

// close stops accepting arrivals and waits for in-flight iterations.
func (p *pool) close() {
	close(p.jobs)
	p.wg.Wait()
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
