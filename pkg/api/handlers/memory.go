package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/recall/pkg/api/response"
	"github.com/goclaw/recall/pkg/memory"
)

// Retriever is the slice of the retrieval engine the HTTP layer calls.
type Retriever interface {
	Remember(ctx context.Context, owner string, tier memory.Tier, content string, meta memory.Metadata) (*memory.Memory, error)
	Get(ctx context.Context, owner, id string) (*memory.Memory, error)
	Update(ctx context.Context, owner, id string, patch memory.Patch) (*memory.Memory, error)
	Forget(ctx context.Context, owner, id string) (bool, error)
	List(ctx context.Context, owner string, tier memory.Tier) ([]*memory.Memory, error)
	SemanticSearch(ctx context.Context, req memory.SearchRequest) ([]memory.ScoredMemory, error)
	StrategicContext(ctx context.Context, owner, query string) (*memory.StrategicContext, error)
	StoreSummary(ctx context.Context, req memory.SummaryRequest) (*memory.Memory, error)
}

// PriorityCalculator derives priority scores from an owner's personal memories.
type PriorityCalculator interface {
	Calculate(ctx context.Context, owner string) (map[string]float64, error)
}

// MemoryHandler handles memory-related API endpoints.
type MemoryHandler struct {
	engine     Retriever
	priorities PriorityCalculator
	logger     memoryLogger
}

type memoryLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(engine Retriever, priorities PriorityCalculator, log memoryLogger) *MemoryHandler {
	return &MemoryHandler{
		engine:     engine,
		priorities: priorities,
		logger:     log,
	}
}

// --- Request/Response types ---

type createMemoryRequest struct {
	Tier     string          `json:"tier" validate:"required,oneof=PERSONAL PROJECT TASK"`
	Content  string          `json:"content" validate:"required,max=10000"`
	Metadata memory.Metadata `json:"metadata,omitempty"`
}

type updateMemoryRequest struct {
	Content         *string         `json:"content,omitempty" validate:"omitempty,min=1,max=10000"`
	Metadata        memory.Metadata `json:"metadata,omitempty"`
	ReplaceMetadata bool            `json:"replace_metadata,omitempty"`
}

type searchRequest struct {
	Query     string   `json:"query" validate:"required"`
	Tiers     []string `json:"tiers,omitempty" validate:"omitempty,dive,oneof=PERSONAL PROJECT TASK"`
	Limit     int      `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=-1,lte=1"`
}

type contextRequest struct {
	Query string `json:"query" validate:"required"`
}

type summaryRequest struct {
	Content       string          `json:"content" validate:"required,max=10000"`
	SourceContext string          `json:"source_context"`
	Tier          string          `json:"tier" validate:"required,oneof=PERSONAL PROJECT TASK"`
	Metadata      memory.Metadata `json:"metadata,omitempty"`
}

// memoryView is the wire form of a record; embeddings stay server-side.
type memoryView struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Tier        memory.Tier     `json:"tier"`
	Content     string          `json:"content"`
	Metadata    memory.Metadata `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	AccessedAt  time.Time       `json:"accessed_at"`
	AccessCount int64           `json:"access_count"`
}

type scoredView struct {
	Memory     memoryView `json:"memory"`
	Similarity float64    `json:"similarity"`
	Score      float64    `json:"score"`
}

type listResponse struct {
	Memories []memoryView `json:"memories"`
	Count    int          `json:"count"`
}

type searchResponse struct {
	Results []scoredView `json:"results"`
	Count   int          `json:"count"`
}

type contextResponse struct {
	Personal []scoredView `json:"personal"`
	Project  []scoredView `json:"project"`
	Task     []scoredView `json:"task"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

type prioritiesResponse struct {
	Owner      string             `json:"owner"`
	Priorities map[string]float64 `json:"priorities"`
}

func viewOf(m *memory.Memory) memoryView {
	return memoryView{
		ID:          m.ID,
		Owner:       m.Owner,
		Tier:        m.Tier,
		Content:     m.Content,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		AccessedAt:  m.AccessedAt,
		AccessCount: m.AccessCount,
	}
}

func scoredViews(in []memory.ScoredMemory) []scoredView {
	out := make([]scoredView, 0, len(in))
	for _, s := range in {
		out = append(out, scoredView{Memory: viewOf(s.Memory), Similarity: s.Similarity, Score: s.Score})
	}
	return out
}

func tiersOf(in []string) []memory.Tier {
	if len(in) == 0 {
		return nil
	}
	out := make([]memory.Tier, len(in))
	for i, t := range in {
		out[i] = memory.Tier(t)
	}
	return out
}

func owner(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "owner"))
}

func (h *MemoryHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := response.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("memory request failed", "operation", op, "owner", owner(r), "error", err)
	} else {
		h.logger.Debug("memory request rejected", "operation", op, "owner", owner(r), "error", err)
	}
	response.HandleError(w, err, requestID(r))
}

// CreateMemory handles POST /api/v1/owners/{owner}/memories
// @Summary Store a memory
// @Tags memories
// @Accept json
// @Produce json
// @Param owner path string true "Owner scope"
// @Param body body createMemoryRequest true "Memory"
// @Success 201 {object} memoryView
// @Failure 400 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/v1/owners/{owner}/memories [post]
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.engine.Remember(r.Context(), owner(r), memory.Tier(req.Tier), req.Content, req.Metadata)
	if err != nil {
		h.fail(w, r, "remember", err)
		return
	}

	response.JSON(w, http.StatusCreated, viewOf(m))
}

// ListMemories handles GET /api/v1/owners/{owner}/memories?tier=
// @Summary List an owner's memories
// @Tags memories
// @Produce json
// @Param owner path string true "Owner scope"
// @Param tier query string false "PERSONAL, PROJECT or TASK"
// @Success 200 {object} listResponse
// @Router /api/v1/owners/{owner}/memories [get]
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	var tier memory.Tier
	if raw := r.URL.Query().Get("tier"); strings.TrimSpace(raw) != "" {
		var err error
		if tier, err = memory.ParseTier(raw); err != nil {
			h.fail(w, r, "list", err)
			return
		}
	}

	list, err := h.engine.List(r.Context(), owner(r), tier)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}

	views := make([]memoryView, 0, len(list))
	for _, m := range list {
		views = append(views, viewOf(m))
	}
	response.JSON(w, http.StatusOK, listResponse{Memories: views, Count: len(views)})
}

// GetMemory handles GET /api/v1/owners/{owner}/memories/{id}
// @Summary Read a memory and refresh its access time
// @Tags memories
// @Produce json
// @Param owner path string true "Owner scope"
// @Param id path string true "Memory id"
// @Success 200 {object} memoryView
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/owners/{owner}/memories/{id} [get]
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get", err)
		return
	}
	response.JSON(w, http.StatusOK, viewOf(m))
}

// UpdateMemory handles PATCH /api/v1/owners/{owner}/memories/{id}
// @Summary Update content or metadata; content changes are re-embedded
// @Tags memories
// @Accept json
// @Produce json
// @Param owner path string true "Owner scope"
// @Param id path string true "Memory id"
// @Param body body updateMemoryRequest true "Patch"
// @Success 200 {object} memoryView
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/owners/{owner}/memories/{id} [patch]
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req updateMemoryRequest
	if !decode(w, r, &req) {
		return
	}
	patch := memory.Patch{
		Content:         req.Content,
		Metadata:        req.Metadata,
		ReplaceMetadata: req.ReplaceMetadata,
	}
	if patch.Empty() {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Nothing to update", requestID(r))
		return
	}

	m, err := h.engine.Update(r.Context(), owner(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update", err)
		return
	}
	response.JSON(w, http.StatusOK, viewOf(m))
}

// DeleteMemory handles DELETE /api/v1/owners/{owner}/memories/{id}
// @Summary Delete a memory (idempotent)
// @Tags memories
// @Produce json
// @Param owner path string true "Owner scope"
// @Param id path string true "Memory id"
// @Success 200 {object} deleteResponse
// @Router /api/v1/owners/{owner}/memories/{id} [delete]
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.Forget(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "forget", err)
		return
	}
	response.JSON(w, http.StatusOK, deleteResponse{Deleted: removed})
}

// Search handles POST /api/v1/owners/{owner}/search
// @Summary Hybrid semantic search
// @Tags retrieval
// @Accept json
// @Produce json
// @Param owner path string true "Owner scope"
// @Param body body searchRequest true "Query"
// @Success 200 {object} searchResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Failure 504 {object} response.ErrorResponse
// @Router /api/v1/owners/{owner}/search [post]
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}

	results, err := h.engine.SemanticSearch(r.Context(), memory.SearchRequest{
		Owner:     owner(r),
		Query:     req.Query,
		Tiers:     tiersOf(req.Tiers),
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.fail(w, r, memory.OpSemanticSearch, err)
		return
	}

	views := scoredViews(results)
	response.JSON(w, http.StatusOK, searchResponse{Results: views, Count: len(views)})
}

// Context handles POST /api/v1/owners/{owner}/context
// @Summary Tiered strategic context for prompt assembly
// @Tags retrieval
// @Accept json
// @Produce json
// @Param owner path string true "Owner scope"
// @Param body body contextRequest true "Query"
// @Success 200 {object} contextResponse
// @Router /api/v1/owners/{owner}/context [post]
func (h *MemoryHandler) Context(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !decode(w, r, &req) {
		return
	}

	sc, err := h.engine.StrategicContext(r.Context(), owner(r), req.Query)
	if err != nil {
		h.fail(w, r, memory.OpStrategicContext, err)
		return
	}

	response.JSON(w, http.StatusOK, contextResponse{
		Personal: scoredViews(sc.Personal),
		Project:  scoredViews(sc.Project),
		Task:     scoredViews(sc.Task),
	})
}

// StoreSummary handles POST /api/v1/owners/{owner}/summaries
// @Summary Store an agent-derived summary
// @Tags retrieval
// @Accept json
// @Produce json
// @Param owner path string true "Owner scope"
// @Param body body summaryRequest true "Summary"
// @Success 201 {object} memoryView
// @Router /api/v1/owners/{owner}/summaries [post]
func (h *MemoryHandler) StoreSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.engine.StoreSummary(r.Context(), memory.SummaryRequest{
		Owner:         owner(r),
		Content:       req.Content,
		SourceContext: req.SourceContext,
		Tier:          memory.Tier(req.Tier),
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.fail(w, r, "store_summary", err)
		return
	}
	response.JSON(w, http.StatusCreated, viewOf(m))
}

// Priorities handles GET /api/v1/owners/{owner}/priorities
// @Summary Aggregate priority scores from personal memories
// @Tags retrieval
// @Produce json
// @Param owner path string true "Owner scope"
// @Success 200 {object} prioritiesResponse
// @Router /api/v1/owners/{owner}/priorities [get]
func (h *MemoryHandler) Priorities(w http.ResponseWriter, r *http.Request) {
	if h.priorities == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Priority analysis is not configured", requestID(r))
		return
	}

	o := owner(r)
	scores, err := h.priorities.Calculate(r.Context(), o)
	if err != nil {
		h.fail(w, r, "priorities", err)
		return
	}
	response.JSON(w, http.StatusOK, prioritiesResponse{Owner: o, Priorities: scores})
}
