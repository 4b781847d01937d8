package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAITimeout = 30 * time.Second
	maxErrorBody         = 4096
)

// OpenAIConfig configures the OpenAI-compatible embeddings backend.
type OpenAIConfig struct {
	// BaseURL defaults to https://api.openai.com/v1. Any endpoint that
	// speaks the /embeddings wire format works.
	BaseURL string
	APIKey  string
	Model   string
	// Dimension is the expected vector length. Defaults to 1536.
	Dimension int
	Timeout   time.Duration
}

// OpenAIBackend calls an OpenAI-compatible /embeddings endpoint.
type OpenAIBackend struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIBackend creates the backend. It is safe for concurrent use.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type openaiRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Model returns the configured model name.
func (b *OpenAIBackend) Model() string { return b.cfg.Model }

// Dimensions returns the expected vector length.
func (b *OpenAIBackend) Dimensions() int { return b.cfg.Dimension }

// EmbedBatch embeds texts in one request and returns vectors in input order.
func (b *OpenAIBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openaiRequest{Input: texts, Model: b.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("embedding openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding openai: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	var out openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding openai: decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("embedding openai: API error (%s): %s", out.Error.Type, out.Error.Message)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding openai: got %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// errorMessage extracts the OpenAI error envelope message, or returns the
// trimmed body.
func errorMessage(raw []byte) string {
	var env openaiResponse
	if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
