package health

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gustycube/pingscope/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// checkTimeout bounds one /health request.
const checkTimeout = 5 * time.Second

// Check is the result of one dependency check.
type Check struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	DurationMS  int64     `json:"duration_ms"`
}

// Response is the /health body.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    []Check           `json:"checks"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Readiness is the /ready body.
type Readiness struct {
	Ready     bool              `json:"ready"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler serves health, readiness and liveness for one pingscope process.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	metadata map[string]string
	logger   *logging.Logger
	ready    bool
}

func NewHandler(logger *logging.Logger) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		metadata: make(map[string]string),
		logger:   logger,
	}
}

// RegisterChecker adds or replaces the checker under name.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) SetMetadata(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata[key] = value
}

func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

func (h *Handler) snapshot() (map[string]Checker, map[string]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.checkers), maps.Clone(h.metadata), h.ready
}

// Run executes every registered check concurrently and folds the results:
// any unhealthy check makes the whole unhealthy, otherwise any degraded one
// degrades it.
func (h *Handler) Run(ctx context.Context) Response {
	checkers, metadata, _ := h.snapshot()

	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	slices.Sort(names)
	checks := make([]Check, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			c := checkers[name].Check(ctx)
			c.Name = name
			checks[i] = c
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case c.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
		if c.Status != StatusHealthy && h.logger != nil {
			h.logger.Warnw("health check not healthy", "check", c.Name, "status", c.Status, "message", c.Message)
		}
	}
	return Response{Status: overall, Timestamp: time.Now(), Checks: checks, Metadata: metadata}
}

// HealthHandler serves /health. Degraded still answers 200.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := h.Run(ctx)
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// ReadinessHandler serves /ready: 503 until SetReady(true).
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	_, metadata, ready := h.snapshot()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Readiness{Ready: ready, Timestamp: time.Now(), Metadata: metadata})
}

// LivenessHandler serves /live and always answers 200.
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// PingChecker reports a dependency healthy when its ping succeeds. A nil
// ping means the dependency is not configured.
type PingChecker struct {
	what string
	ping func(ctx context.Context) error
}

// NewPingChecker wraps ping under a human readable dependency name.
func NewPingChecker(what string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{what: what, ping: ping}
}

func (c *PingChecker) Check(ctx context.Context) Check {
	if c.ping == nil {
		return Check{Status: StatusHealthy, Message: c.what + " not configured", LastChecked: time.Now()}
	}
	start := time.Now()
	err := c.ping(ctx)
	check := Check{
		Status:      StatusHealthy,
		Message:     c.what + " OK",
		LastChecked: time.Now(),
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = c.what + " unreachable: " + err.Error()
	}
	return check
}

// SpoolChecker degrades health while undelivered event batches sit in the
// spool directory.
type SpoolChecker struct {
	pending func() (int, error)
}

func NewSpoolChecker(pending func() (int, error)) *SpoolChecker {
	return &SpoolChecker{pending: pending}
}

func (c *SpoolChecker) Check(ctx context.Context) Check {
	start := time.Now()
	n, err := c.pending()
	check := Check{
		Status:      StatusHealthy,
		Message:     "spool empty",
		LastChecked: time.Now(),
		DurationMS:  time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = "spool unreadable: " + err.Error()
	case n > 0:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d batches waiting in spool", n)
	}
	return check
}
