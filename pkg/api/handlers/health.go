package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goclaw/recall/pkg/api/response"
	"github.com/goclaw/recall/pkg/version"
)

// Check is a named readiness check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// ServiceInfo describes the running service for /status.
type ServiceInfo struct {
	Name           string `json:"name"`
	Environment    string `json:"environment"`
	Storage        string `json:"storage"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	info    ServiceInfo
	checks  []Check
	timeout time.Duration
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(info ServiceInfo, checks ...Check) *HealthHandler {
	return &HealthHandler{
		info:    info,
		checks:  checks,
		timeout: 2 * time.Second,
		started: time.Now(),
	}
}

// Health handles the /health endpoint (liveness check).
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness check).
// @Summary Readiness check over the store and cache
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, map[string]interface{}{
		"ready":  ok,
		"checks": results,
	})
}

// Status handles the /status endpoint (detailed status).
// @Summary Build and runtime details
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /status [get]
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context())
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"service": h.info,
		"version": version.Info(),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"ready":   ok,
		"checks":  results,
	})
}

// run executes all checks concurrently under the handler timeout.
func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		ok      = true
		results = make(map[string]string, len(h.checks))
	)
	for _, c := range h.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			state := "ok"
			if err := c.Run(ctx); err != nil {
				state = err.Error()
			}
			mu.Lock()
			results[c.Name] = state
			if state != "ok" {
				ok = false
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results, ok
}
