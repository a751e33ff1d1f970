// Package dummy serves an in-memory lamp API for local runs and tests.
package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lampbench/internal/lampapi"
)

// Latency profiles applied to every lamp request.
const (
	ProfileNone   = ""
	ProfileFast   = "fast"   // 10-50ms
	ProfileMedium = "medium" // 100-300ms
	ProfileSpike  = "spike"  // 20ms, 5% of requests take 2s
)

const maxPageSize = 100

type ServerConfig struct {
	Port     int
	BasePath string
	Profile  string
	// StartupDelay keeps /health answering 503 for this long after start.
	StartupDelay time.Duration
	// ErrorRate is the fraction of lamp requests answered with 500.
	ErrorRate float64
}

type store struct {
	mu    sync.RWMutex
	lamps map[string]lampapi.Lamp
	order []string
}

func (s *store) create(status bool) lampapi.Lamp {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	l := lampapi.Lamp{ID: uuid.NewString(), Status: status, CreatedAt: now, UpdatedAt: now}
	s.mu.Lock()
	s.lamps[l.ID] = l
	s.order = append(s.order, l.ID)
	s.mu.Unlock()
	return l
}

func (s *store) get(id string) (lampapi.Lamp, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lamps[id]
	return l, ok
}

func (s *store) update(id string, status bool) (lampapi.Lamp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lamps[id]
	if !ok {
		return l, false
	}
	l.Status = status
	l.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	s.lamps[id] = l
	return l, true
}

func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lamps[id]; !ok {
		return false
	}
	delete(s.lamps, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// page returns lamps in creation order. The cursor is the offset of the next
// page.
func (s *store) page(offset, size int) lampapi.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := lampapi.Page{Data: []lampapi.Lamp{}}
	if offset >= len(s.order) {
		return p
	}
	end := offset + size
	if end > len(s.order) {
		end = len(s.order)
	}
	for _, id := range s.order[offset:end] {
		p.Data = append(p.Data, s.lamps[id])
	}
	if end < len(s.order) {
		p.HasMore = true
		p.NextCursor = strconv.Itoa(end)
	}
	return p
}

type server struct {
	cfg     ServerConfig
	store   *store
	started time.Time
}

// NewHandler returns the lamp API router.
func NewHandler(cfg ServerConfig) http.Handler {
	if cfg.BasePath == "" {
		cfg.BasePath = "/v1"
	}
	s := &server{
		cfg:     cfg,
		store:   &store{lamps: make(map[string]lampapi.Lamp)},
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix(cfg.BasePath).Subrouter()
	api.Use(s.latency)
	api.HandleFunc("/lamps", s.list).Methods(http.MethodGet)
	api.HandleFunc("/lamps", s.create).Methods(http.MethodPost)
	api.HandleFunc("/lamps/{id}", s.get).Methods(http.MethodGet)
	api.HandleFunc("/lamps/{id}", s.update).Methods(http.MethodPut)
	api.HandleFunc("/lamps/{id}", s.delete).Methods(http.MethodDelete)
	return r
}

// Start serves the lamp API in the background and returns the server so the
// caller can shut it down.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Dummy lamp service running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /health, <basePath>/lamps, <basePath>/lamps/{id}")

	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(cfg),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("dummy server failed")
		}
	}()
	return server
}

func (s *server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch s.cfg.Profile {
		case ProfileFast:
			time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		case ProfileMedium:
			time.Sleep(time.Duration(rand.Intn(200)+100) * time.Millisecond)
		case ProfileSpike:
			if rand.Float32() < 0.05 {
				time.Sleep(2 * time.Second)
			} else {
				time.Sleep(20 * time.Millisecond)
			}
		}
		if s.cfg.ErrorRate > 0 && rand.Float64() < s.cfg.ErrorRate {
			writeError(w, http.StatusInternalServerError, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	if time.Since(s.started) < s.cfg.StartupDelay {
		writeError(w, http.StatusServiceUnavailable, "starting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	size := 25
	if v := r.URL.Query().Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			writeError(w, http.StatusBadRequest, "invalid pageSize")
			return
		}
		size = n
	}
	offset := 0
	if v := r.URL.Query().Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		offset = n
	}
	writeJSON(w, http.StatusOK, s.store.page(offset, size))
}

type statusRequest struct {
	Status *bool `json:"status"`
}

func decodeStatus(r *http.Request) (bool, bool) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil {
		return false, false
	}
	return *req.Status, true
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatus(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be a boolean")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.create(status))
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	l, ok := s.store.get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "lamp not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatus(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be a boolean")
		return
	}
	l, ok := s.store.update(mux.Vars(r)["id"], status)
	if !ok {
		writeError(w, http.StatusNotFound, "lamp not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	if !s.store.delete(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "lamp not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
