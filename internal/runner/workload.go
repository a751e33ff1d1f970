package runner

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"lampbench/internal/lampapi"
)

// worker is one virtual user. owned holds the lamps it created and has not
// deleted yet; no other worker reads or writes it.
type worker struct {
	id    int
	r     *Runner
	seeds []string
	owned []string
	rng   *rand.Rand

	// queue wait of the iteration in progress
	queueWait time.Duration
}

func newWorker(id int, r *Runner, seeds []string) *worker {
	return &worker{
		id:    id,
		r:     r,
		seeds: seeds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*7919)),
	}
}

// pickOperation draws an operation with probability weight/sum(weights).
func pickOperation(rng *rand.Rand, weights [5]int) Operation {
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return OpList
	}
	pick := rng.Intn(total)
	for op, w := range weights {
		if pick < w {
			return Operation(op)
		}
		pick -= w
	}
	return OpDelete
}

func (w *worker) iterate(ctx context.Context, scheduled time.Time) {
	w.queueWait = time.Since(scheduled)
	if w.queueWait < 0 {
		w.queueWait = 0
	}

	atomic.AddInt64(&w.r.inflight, 1)
	defer atomic.AddInt64(&w.r.inflight, -1)

	switch pickOperation(w.rng, w.r.Cfg.Weights()) {
	case OpList:
		w.list(ctx)
	case OpGet:
		w.get(ctx)
	case OpCreate:
		w.create(ctx)
	case OpUpdate:
		w.update(ctx)
	default:
		w.delete(ctx)
	}
}

// request sends one tracked request. Its latency always lands in the phase
// trend; ok reports whether the status was the expected one.
func (w *worker) request(ctx context.Context, op Operation, method, path string, body any, expected int) (*lampapi.Response, bool) {
	start := time.Now()
	resp, err := w.r.Client.Do(ctx, method, path, body)
	serviceTime := time.Since(start)

	ok := err == nil && resp.Status == expected
	var failure string
	var size int64
	switch {
	case err != nil:
		failure = fmt.Sprintf("%s: %s", op, classify(err))
	case !ok:
		failure = fmt.Sprintf("%s: status %d", op, resp.Status)
	}
	if resp != nil {
		size = int64(len(resp.Body))
	}
	w.r.Stats.AddRequest(ok, size, serviceTime, w.queueWait, serviceTime+w.queueWait, failure)
	w.r.Stats.AddCheck(ok)
	return resp, ok
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(errors.Cause(err)) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "transport error"
}

// lampChecks records the body assertion of a single-lamp response.
func (w *worker) lampChecks(body []byte) (lampapi.Lamp, bool) {
	l, ok := lampapi.DecodeLamp(body)
	w.r.Stats.AddCheck(ok)
	return l, ok
}

func (w *worker) list(ctx context.Context) {
	resp, _ := w.request(ctx, OpList, http.MethodGet, lampapi.ListPath(w.r.Cfg.PageSize, ""), nil, http.StatusOK)
	if resp == nil {
		w.r.Stats.AddCheck(false)
		w.r.Stats.AddCheck(false)
		return
	}
	_, hasData, hasMore := lampapi.DecodePage(resp.Body)
	w.r.Stats.AddCheck(hasData)
	w.r.Stats.AddCheck(hasMore)
}

func (w *worker) create(ctx context.Context) {
	resp, ok := w.request(ctx, OpCreate, http.MethodPost, "/lamps", map[string]bool{"status": w.rng.Intn(2) == 0}, http.StatusCreated)
	if !ok {
		return
	}
	if l, ok := w.lampChecks(resp.Body); ok {
		w.owned = append(w.owned, l.ID)
	}
}

// pickID prefers lamps this worker owns, then lamps seeded before the phase.
func (w *worker) pickID() string {
	if len(w.owned) > 0 {
		return w.owned[w.rng.Intn(len(w.owned))]
	}
	if len(w.seeds) > 0 {
		return w.seeds[w.rng.Intn(len(w.seeds))]
	}
	return ""
}

// targetID picks an existing lamp, creating one first when none is known.
func (w *worker) targetID(ctx context.Context) string {
	if id := w.pickID(); id != "" {
		return id
	}
	w.create(ctx)
	if len(w.owned) == 0 {
		return ""
	}
	return w.owned[len(w.owned)-1]
}

func (w *worker) get(ctx context.Context) {
	id := w.targetID(ctx)
	if id == "" {
		return
	}
	if resp, _ := w.request(ctx, OpGet, http.MethodGet, "/lamps/"+id, nil, http.StatusOK); resp != nil {
		w.lampChecks(resp.Body)
	}
}

func (w *worker) update(ctx context.Context) {
	id := w.targetID(ctx)
	if id == "" {
		return
	}
	status := w.rng.Intn(2) == 0
	resp, _ := w.request(ctx, OpUpdate, http.MethodPut, "/lamps/"+id, map[string]bool{"status": status}, http.StatusOK)
	if resp == nil {
		return
	}
	l, ok := w.lampChecks(resp.Body)
	w.r.Stats.AddCheck(ok && l.Status == status)
}

// delete removes an owned lamp, or creates a throwaway one to delete so seed
// data is never consumed.
func (w *worker) delete(ctx context.Context) {
	var id string
	if n := len(w.owned); n > 0 {
		id = w.owned[n-1]
		w.owned = w.owned[:n-1]
	} else {
		resp, ok := w.request(ctx, OpCreate, http.MethodPost, "/lamps", map[string]bool{"status": w.rng.Intn(2) == 0}, http.StatusCreated)
		if !ok {
			return
		}
		created, ok := lampapi.DecodeLamp(resp.Body)
		if !ok {
			return
		}
		id = created.ID
	}
	w.request(ctx, OpDelete, http.MethodDelete, "/lamps/"+id, nil, http.StatusNoContent)
}

// SeedIDs collects existing lamp ids before load starts by following list
// cursors for up to SeedFetchPages pages. Seeding stops quietly at the first
// unusable page; these requests are not part of the phase metrics.
func (r *Runner) SeedIDs(ctx context.Context) []string {
	var ids []string
	cursor := ""
	for page := 0; page < r.Cfg.SeedFetchPages; page++ {
		resp, err := r.Client.List(ctx, r.Cfg.SeedPageSize, cursor)
		if err != nil {
			r.Log.WithError(err).Warn("seed fetch failed")
			break
		}
		if resp.Status != http.StatusOK {
			r.Log.WithField("status", resp.Status).Warn("seed fetch returned unexpected status")
			break
		}
		p, hasData, _ := lampapi.DecodePage(resp.Body)
		if !hasData {
			break
		}
		for _, l := range p.Data {
			ids = append(ids, l.ID)
		}
		if !p.HasMore || p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	return ids
}
