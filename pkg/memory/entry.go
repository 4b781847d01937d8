// Package memory provides the hybrid semantic memory core: tiered memory
// records, a similarity-gated hybrid scorer, the retrieval engine that
// assembles strategic context, the retention policy and sweeper for
// short-lived task memories, and the priority analyzer.
package memory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Tier classifies how long a memory is expected to stay relevant.
type Tier string

const (
	// TierPersonal holds identity and preference memories. Never pruned.
	TierPersonal Tier = "PERSONAL"
	// TierProject holds goals and plans.
	TierProject Tier = "PROJECT"
	// TierTask holds short-lived conversational state.
	TierTask Tier = "TASK"
)

// MaxContentLength is the maximum content length in characters.
const MaxContentLength = 10000

// Tiers lists every tier in canonical order.
var Tiers = []Tier{TierPersonal, TierProject, TierTask}

// Valid reports whether t is one of the three tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierPersonal, TierProject, TierTask:
		return true
	}
	return false
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// Metadata is an open key-value map. Values are JSON-compatible.
type Metadata map[string]any

// Clone returns a shallow copy of the map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Memory is a single durable fact, insight or conversation fragment.
type Memory struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Tier    Tier   `json:"tier"`
	Content string `json:"content"`

	// Embedding is nil until computed.
	Embedding []float32 `json:"embedding,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`

	// AccessCount counts successful reads.
	AccessCount int64 `json:"access_count"`
}

// Clone returns a copy that shares no mutable state with m.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	c := *m
	if m.Embedding != nil {
		c.Embedding = make([]float32, len(m.Embedding))
		copy(c.Embedding, m.Embedding)
	}
	c.Metadata = m.Metadata.Clone()
	return &c
}

// Touch records a successful read at now. AccessedAt never moves before
// CreatedAt.
func (m *Memory) Touch(now time.Time) {
	if now.Before(m.CreatedAt) {
		now = m.CreatedAt
	}
	m.AccessedAt = now
	m.AccessCount++
}

// ValidateContent checks the 1..MaxContentLength character rule.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidContent)
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidContent, n, MaxContentLength)
	}
	return nil
}

// ValidateEmbedding rejects a non-nil vector whose length is not dim.
func ValidateEmbedding(vec []float32, dim int) error {
	if vec == nil {
		return nil
	}
	if len(vec) != dim {
		return &DimensionMismatchError{Expected: dim, Got: len(vec)}
	}
	return nil
}

// ValidateForInsert checks the write-path invariants of a new record.
func ValidateForInsert(m *Memory, dim int) error {
	if m == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidContent)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidContent)
	}
	if strings.TrimSpace(m.Owner) == "" {
		return ErrInvalidOwner
	}
	if !m.Tier.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTier, m.Tier)
	}
	if err := ValidateContent(m.Content); err != nil {
		return err
	}
	return ValidateEmbedding(m.Embedding, dim)
}

// Stamp sets CreatedAt and AccessedAt for a freshly inserted record.
func (m *Memory) Stamp(now time.Time) {
	m.CreatedAt = now
	m.AccessedAt = now
	m.AccessCount = 0
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Content   *string
	Metadata  Metadata
	Embedding []float32
	// ReplaceMetadata replaces the map instead of merging keys into it.
	ReplaceMetadata bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Content == nil && p.Metadata == nil && p.Embedding == nil && !p.ReplaceMetadata
}

// Validate checks the patch against the write-path invariants.
func (p Patch) Validate(dim int) error {
	if p.Content != nil {
		if err := ValidateContent(*p.Content); err != nil {
			return err
		}
	}
	return ValidateEmbedding(p.Embedding, dim)
}

// Apply mutates m according to the patch.
func (p Patch) Apply(m *Memory) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Embedding != nil {
		m.Embedding = make([]float32, len(p.Embedding))
		copy(m.Embedding, p.Embedding)
	}
	switch {
	case p.ReplaceMetadata:
		m.Metadata = p.Metadata.Clone()
	case p.Metadata != nil:
		if m.Metadata == nil {
			m.Metadata = make(Metadata, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			if v == nil {
				delete(m.Metadata, k)
				continue
			}
			m.Metadata[k] = v
		}
	}
}

// Candidate is a store hit annotated with its raw similarity.
type Candidate struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// ScoredMemory is a ranked retrieval result.
type ScoredMemory struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}

// StrategicContext is the fixed three-bucket retrieval shape.
type StrategicContext struct {
	Personal []ScoredMemory `json:"personal"`
	Project  []ScoredMemory `json:"project"`
	Task     []ScoredMemory `json:"task"`
}
