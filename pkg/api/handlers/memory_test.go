package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/recall/pkg/api/middleware"
	"github.com/goclaw/recall/pkg/api/response"
	"github.com/goclaw/recall/pkg/embedding"
	"github.com/goclaw/recall/pkg/logger"
	"github.com/goclaw/recall/pkg/memory"
	memstore "github.com/goclaw/recall/pkg/storage/memory"
)

const testDim = 256

func testLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stderr",
	})
}

func newTestHandler(t *testing.T, embedder memory.Embedder) *MemoryHandler {
	t.Helper()
	store := memstore.NewStore(memstore.Config{Dimension: testDim})
	if embedder == nil {
		embedder = embedding.NewProvider(embedding.NewHashBackend(testDim), embedding.Config{})
	}

	cfg := memory.DefaultEngineConfig()
	cfg.Dimension = testDim
	eng, err := memory.NewEngine(store, embedder, cfg)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return NewMemoryHandler(eng, memory.NewPriorityAnalyzer(store, nil), testLogger())
}

func memoryRouter(h *MemoryHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Route("/api/v1/owners/{owner}", func(r chi.Router) {
		r.Post("/memories", h.CreateMemory)
		r.Get("/memories", h.ListMemories)
		r.Get("/memories/{id}", h.GetMemory)
		r.Patch("/memories/{id}", h.UpdateMemory)
		r.Delete("/memories/{id}", h.DeleteMemory)
		r.Post("/search", h.Search)
		r.Post("/context", h.Context)
		r.Post("/summaries", h.StoreSummary)
		r.Get("/priorities", h.Priorities)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func create(t *testing.T, h http.Handler, owner, body string) memoryView {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/owners/"+owner+"/memories", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody[memoryView](t, w)
}

func TestMemoryHandler_CreateAndGet(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))

	created := create(t, router, "alice", `{"tier":"PERSONAL","content":"I love hiking in the alps","metadata":{"mood":"happy"}}`)
	if created.ID == "" || created.Tier != memory.TierPersonal || created.Owner != "alice" {
		t.Fatalf("unexpected created memory: %+v", created)
	}
	if created.Metadata["mood"] != "happy" {
		t.Errorf("metadata = %v", created.Metadata)
	}

	w := do(t, router, http.MethodGet, "/api/v1/owners/alice/memories/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "embedding") {
		t.Error("embedding leaked into the response")
	}
	got := decodeBody[memoryView](t, w)
	if got.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got.AccessCount)
	}
	if got.AccessedAt.Before(got.CreatedAt) {
		t.Error("accessed_at precedes created_at")
	}
}

func TestMemoryHandler_CreateValidation(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))

	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{name: "empty body", body: ``, wantCode: response.ErrCodeBadRequest},
		{name: "malformed json", body: `{"tier":`, wantCode: response.ErrCodeBadRequest},
		{name: "unknown field", body: `{"tier":"TASK","content":"x","owner":"bob"}`, wantCode: response.ErrCodeBadRequest},
		{name: "invalid tier", body: `{"tier":"GLOBAL","content":"x"}`, wantCode: response.ErrCodeValidationFailed, wantField: "tier"},
		{name: "missing content", body: `{"tier":"TASK"}`, wantCode: response.ErrCodeValidationFailed, wantField: "content"},
		{
			name:      "content too long",
			body:      `{"tier":"TASK","content":"` + strings.Repeat("é", memory.MaxContentLength+1) + `"}`,
			wantCode:  response.ErrCodeValidationFailed,
			wantField: "content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/owners/alice/memories", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			resp := decodeBody[response.ErrorResponse](t, w)
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if tt.wantField != "" {
				if _, ok := resp.Error.Details[tt.wantField]; !ok {
					t.Errorf("expected detail for %q, got %v", tt.wantField, resp.Error.Details)
				}
			}
			if resp.Error.RequestID == "" {
				t.Error("missing request id")
			}
		})
	}
}

func TestMemoryHandler_WhitespaceContentRejected(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))

	w := do(t, router, http.MethodPost, "/api/v1/owners/alice/memories", `{"tier":"TASK","content":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_OwnerIsolation(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	created := create(t, router, "alice", `{"tier":"PROJECT","content":"launch the beta"}`)

	for _, path := range []string{
		"/api/v1/owners/bob/memories/" + created.ID,
		"/api/v1/owners/alice/memories/does-not-exist",
	} {
		w := do(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
		resp := decodeBody[response.ErrorResponse](t, w)
		if resp.Error.Code != response.ErrCodeNotFound {
			t.Errorf("code = %s", resp.Error.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/api/v1/owners/bob/memories", "")
	list := decodeBody[listResponse](t, w)
	if list.Count != 0 {
		t.Errorf("bob sees %d memories", list.Count)
	}
}

func TestMemoryHandler_List(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	create(t, router, "alice", `{"tier":"PERSONAL","content":"prefers tea"}`)
	create(t, router, "alice", `{"tier":"TASK","content":"book flights"}`)

	all := decodeBody[listResponse](t, do(t, router, http.MethodGet, "/api/v1/owners/alice/memories", ""))
	if all.Count != 2 {
		t.Errorf("count = %d, want 2", all.Count)
	}

	tasks := decodeBody[listResponse](t, do(t, router, http.MethodGet, "/api/v1/owners/alice/memories?tier=task", ""))
	if tasks.Count != 1 || tasks.Memories[0].Tier != memory.TierTask {
		t.Errorf("unexpected task listing: %+v", tasks)
	}

	w := do(t, router, http.MethodGet, "/api/v1/owners/alice/memories?tier=archive", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid tier status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_UpdateAndDelete(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	created := create(t, router, "alice", `{"tier":"PROJECT","content":"draft the roadmap","metadata":{"stage":"draft"}}`)
	path := "/api/v1/owners/alice/memories/" + created.ID

	w := do(t, router, http.MethodPatch, path, `{"content":"publish the roadmap","metadata":{"stage":"final"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decodeBody[memoryView](t, w)
	if updated.Content != "publish the roadmap" || updated.Metadata["stage"] != "final" {
		t.Errorf("unexpected update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("created_at changed on update")
	}

	// The new content is what search now finds.
	res := decodeBody[searchResponse](t, do(t, router, http.MethodPost, "/api/v1/owners/alice/search", `{"query":"publish the roadmap"}`))
	if res.Count != 1 || res.Results[0].Memory.ID != created.ID {
		t.Fatalf("re-embedded content not searchable: %+v", res)
	}

	if w := do(t, router, http.MethodPatch, path, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPatch, "/api/v1/owners/bob/memories/"+created.ID, `{"content":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("cross-owner patch status = %d, want 404", w.Code)
	}

	first := decodeBody[deleteResponse](t, do(t, router, http.MethodDelete, path, ""))
	second := decodeBody[deleteResponse](t, do(t, router, http.MethodDelete, path, ""))
	if !first.Deleted || second.Deleted {
		t.Errorf("delete results = %v, %v; want true, false", first.Deleted, second.Deleted)
	}
}

func TestMemoryHandler_Search(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	target := create(t, router, "alice", `{"tier":"PERSONAL","content":"my sister lives in lisbon"}`)
	create(t, router, "alice", `{"tier":"TASK","content":"renew passport before march"}`)
	create(t, router, "bob", `{"tier":"PERSONAL","content":"my sister lives in lisbon"}`)

	w := do(t, router, http.MethodPost, "/api/v1/owners/alice/search", `{"query":"my sister lives in lisbon","limit":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[searchResponse](t, w)
	if res.Count == 0 || res.Results[0].Memory.ID != target.ID {
		t.Fatalf("expected exact match first, got %+v", res)
	}
	for _, r := range res.Results {
		if r.Memory.Owner != "alice" {
			t.Errorf("result from another owner: %+v", r.Memory)
		}
	}
	if res.Results[0].Similarity < 0.99 || res.Results[0].Score < 0.99 || res.Results[0].Score > 1 {
		t.Errorf("similarity = %f, score = %f", res.Results[0].Similarity, res.Results[0].Score)
	}

	tiered := decodeBody[searchResponse](t, do(t, router, http.MethodPost, "/api/v1/owners/alice/search",
		`{"query":"my sister lives in lisbon","tiers":["TASK"],"threshold":0.99}`))
	if tiered.Count != 0 {
		t.Errorf("tier filter leaked results: %+v", tiered)
	}

	for _, body := range []string{`{"query":""}`, `{"query":"x","tiers":["ARCHIVE"]}`, `{"query":"x","limit":1000}`, `{"query":"x","threshold":2}`} {
		if w := do(t, router, http.MethodPost, "/api/v1/owners/alice/search", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s status = %d, want 400", body, w.Code)
		}
	}
}

func TestMemoryHandler_Context(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	project := create(t, router, "alice", `{"tier":"PROJECT","content":"goal ship the mobile app"}`)

	w := do(t, router, http.MethodPost, "/api/v1/owners/alice/context", `{"query":"goal ship the mobile app"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("context status = %d, body = %s", w.Code, w.Body.String())
	}
	sc := decodeBody[contextResponse](t, w)
	if len(sc.Project) != 1 || sc.Project[0].Memory.ID != project.ID {
		t.Errorf("project bucket = %+v", sc.Project)
	}

	// Without a goal cue the project bucket is empty but still an array.
	w = do(t, router, http.MethodPost, "/api/v1/owners/alice/context", `{"query":"ship the mobile app"}`)
	raw := decodeBody[map[string]json.RawMessage](t, w)
	for _, bucket := range []string{"personal", "project", "task"} {
		if string(raw[bucket]) != "[]" {
			t.Errorf("%s = %s, want []", bucket, raw[bucket])
		}
	}
}

func TestMemoryHandler_ContextSurfacesPersonalMemories(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	for _, content := range []string{"My name is Sam", "I am vegetarian", "I live in Porto"} {
		create(t, router, "sam", `{"tier":"PERSONAL","content":"`+content+`"}`)
	}

	w := do(t, router, http.MethodPost, "/api/v1/owners/sam/context", `{"query":"what should I cook tonight"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("context status = %d, body = %s", w.Code, w.Body.String())
	}
	sc := decodeBody[contextResponse](t, w)
	if len(sc.Personal) != 3 {
		t.Errorf("personal bucket = %d, want 3", len(sc.Personal))
	}
	if len(sc.Project) != 0 {
		t.Errorf("project bucket = %d, want 0", len(sc.Project))
	}
}

func TestMemoryHandler_StoreSummary(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))

	w := do(t, router, http.MethodPost, "/api/v1/owners/alice/summaries",
		`{"tier":"PROJECT","content":"user wants to run a marathon","source_context":"chat-42","metadata":{"confidence":0.8}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("summary status = %d, body = %s", w.Code, w.Body.String())
	}
	m := decodeBody[memoryView](t, w)
	if m.Metadata[memory.MetaIsSummary] != true || m.Metadata[memory.MetaSourceContext] != "chat-42" {
		t.Errorf("provenance missing: %v", m.Metadata)
	}
	if m.Metadata["confidence"] != 0.8 {
		t.Errorf("caller metadata lost: %v", m.Metadata)
	}

	if w := do(t, router, http.MethodPost, "/api/v1/owners/alice/summaries", `{"content":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("summary without tier status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_Priorities(t *testing.T) {
	router := memoryRouter(newTestHandler(t, nil))
	create(t, router, "alice", `{"tier":"PERSONAL","content":"stressed about exams","metadata":{"stressors":["learning"],"priorities":"discipline"}}`)
	create(t, router, "alice", `{"tier":"TASK","content":"ignored","metadata":{"priorities":"gaming"}}`)

	w := do(t, router, http.MethodGet, "/api/v1/owners/alice/priorities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("priorities status = %d", w.Code)
	}
	resp := decodeBody[prioritiesResponse](t, w)
	if resp.Owner != "alice" {
		t.Errorf("owner = %s", resp.Owner)
	}
	if resp.Priorities["learning"] != 1 {
		t.Errorf("learning = %v, want 1", resp.Priorities["learning"])
	}
	if v := resp.Priorities["discipline"]; v <= 0 || v >= 1 {
		t.Errorf("discipline = %v, want in (0,1)", v)
	}
	if _, ok := resp.Priorities["gaming"]; ok {
		t.Error("TASK metadata leaked into priorities")
	}

	empty := decodeBody[prioritiesResponse](t, do(t, router, http.MethodGet, "/api/v1/owners/nobody/priorities", ""))
	if len(empty.Priorities) != 0 {
		t.Errorf("expected no priorities, got %v", empty.Priorities)
	}
}

func TestMemoryHandler_PrioritiesNotConfigured(t *testing.T) {
	h := newTestHandler(t, nil)
	h.priorities = nil

	w := do(t, memoryRouter(h), http.MethodGet, "/api/v1/owners/alice/priorities", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

type failingEmbedder struct {
	err error
}

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }
func (f failingEmbedder) Dimensions() int                                  { return testDim }

func TestMemoryHandler_EmbeddingFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "provider unavailable",
			err:        &embedding.UnavailableError{Attempts: 3, Cause: errors.New("upstream returned 503")},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   response.ErrCodeEmbedding,
		},
		{
			name:       "embedding deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   response.ErrCodeGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := memoryRouter(newTestHandler(t, failingEmbedder{err: tt.err}))

			for _, req := range []struct{ path, body string }{
				{"/api/v1/owners/alice/memories", `{"tier":"TASK","content":"x"}`},
				{"/api/v1/owners/alice/search", `{"query":"x"}`},
				{"/api/v1/owners/alice/context", `{"query":"x"}`},
			} {
				w := do(t, router, http.MethodPost, req.path, req.body)
				if w.Code != tt.wantStatus {
					t.Errorf("%s status = %d, want %d", req.path, w.Code, tt.wantStatus)
					continue
				}
				resp := decodeBody[response.ErrorResponse](t, w)
				if resp.Error.Code != tt.wantCode {
					t.Errorf("%s code = %s, want %s", req.path, resp.Error.Code, tt.wantCode)
				}
			}
		})
	}
}
