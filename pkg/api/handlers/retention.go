package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goclaw/recall/pkg/api/response"
	"github.com/goclaw/recall/pkg/memory"
)

// Sweeper runs retention passes on demand.
type Sweeper interface {
	Sweep(ctx context.Context, owner string) (memory.SweepResult, error)
	Stats() memory.SweeperStats
	Policy() memory.RetentionPolicy
}

// RetentionHandler exposes the TASK-tier sweeper.
type RetentionHandler struct {
	sweeper Sweeper
	logger  memoryLogger
}

// NewRetentionHandler creates a new retention handler.
func NewRetentionHandler(sweeper Sweeper, log memoryLogger) *RetentionHandler {
	return &RetentionHandler{sweeper: sweeper, logger: log}
}

type sweepRequest struct {
	Owner string `json:"owner,omitempty" validate:"omitempty,max=256"`
}

type retentionStatus struct {
	Window string              `json:"window"`
	Stats  memory.SweeperStats `json:"stats"`
}

// Sweep handles POST /api/v1/retention/sweep
// @Summary Run one TASK-tier retention pass
// @Description An empty body or owner sweeps every owner.
// @Tags retention
// @Accept json
// @Produce json
// @Param body body sweepRequest false "Optional owner scope"
// @Success 200 {object} memory.SweepResult
// @Failure 503 {object} response.ErrorResponse
// @Router /api/v1/retention/sweep [post]
func (h *RetentionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", requestID(r))
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		r.Body = io.NopCloser(strings.NewReader(string(raw)))
		if !decode(w, r, &req) {
			return
		}
	}

	res, err := h.sweeper.Sweep(r.Context(), strings.TrimSpace(req.Owner))
	if err != nil {
		h.logger.Warn("retention sweep failed", "owner", req.Owner, "pruned", res.Pruned, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			response.Error(w, http.StatusGatewayTimeout, response.ErrCodeGatewayTimeout, "Sweep interrupted; rerun to continue", requestID(r))
			return
		}
		response.HandleError(w, err, requestID(r))
		return
	}

	response.JSON(w, http.StatusOK, res)
}

// Status handles GET /api/v1/retention
// @Summary Retention policy and sweep counters
// @Tags retention
// @Produce json
// @Success 200 {object} retentionStatus
// @Router /api/v1/retention [get]
func (h *RetentionHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, retentionStatus{
		Window: h.sweeper.Policy().Window.Round(time.Second).String(),
		Stats:  h.sweeper.Stats(),
	})
}
