package memory

import (
	"math"
	"sort"
	"time"
)

// ScoringConfig holds the hybrid scorer tuning values.
type ScoringConfig struct {
	// RecencyWeight scales exp(-ageDays/HalfLifeDays).
	RecencyWeight float64
	// HalfLifeDays is the decay constant of the recency boost, in days.
	HalfLifeDays float64
	// FrequencyWeight scales log(1+accesses).
	FrequencyWeight float64
	// FrequencyCap bounds the frequency boost.
	FrequencyCap float64
}

// DefaultScoringConfig returns the reference tuning.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		RecencyWeight:   0.10,
		HalfLifeDays:    7,
		FrequencyWeight: 0.05,
		FrequencyCap:    0.10,
	}
}

// HybridScorer combines raw similarity with recency and frequency boosts.
// The similarity threshold is a relevance gate applied to the raw score
// before any boost; boosts only reorder admitted results.
type HybridScorer struct {
	cfg ScoringConfig
}

// NewHybridScorer creates a scorer with the given tuning.
func NewHybridScorer(cfg ScoringConfig) *HybridScorer {
	return &HybridScorer{cfg: cfg}
}

// Config returns the scorer's tuning.
func (s *HybridScorer) Config() ScoringConfig {
	return s.cfg
}

// WithRecencyWeight returns a copy of the scorer with a different recency weight.
func (s *HybridScorer) WithRecencyWeight(w float64) *HybridScorer {
	cfg := s.cfg
	cfg.RecencyWeight = w
	return &HybridScorer{cfg: cfg}
}

// RecencyBoost decays monotonically with the age of the record.
func (s *HybridScorer) RecencyBoost(createdAt, now time.Time) float64 {
	if s.cfg.RecencyWeight <= 0 || s.cfg.HalfLifeDays <= 0 {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return s.cfg.RecencyWeight * math.Exp(-ageDays/s.cfg.HalfLifeDays)
}

// FrequencyBoost grows with the number of re-accesses and is capped.
// Records without an access counter fall back to the accessedAt/createdAt gap.
func (s *HybridScorer) FrequencyBoost(m *Memory) float64 {
	if s.cfg.FrequencyWeight <= 0 {
		return 0
	}
	accesses := float64(m.AccessCount)
	if accesses == 0 && m.AccessedAt.After(m.CreatedAt) {
		accesses = 1
	}
	boost := s.cfg.FrequencyWeight * math.Log1p(accesses)
	if s.cfg.FrequencyCap > 0 && boost > s.cfg.FrequencyCap {
		boost = s.cfg.FrequencyCap
	}
	return boost
}

// Admit reports whether a raw similarity passes the threshold gate.
func Admit(similarity, threshold float64) bool {
	return clamp01(similarity) >= threshold
}

// Score computes the final ranking score of a candidate.
func (s *HybridScorer) Score(c Candidate, now time.Time) ScoredMemory {
	base := clamp01(c.Similarity)
	score := base + s.RecencyBoost(c.Memory.CreatedAt, now) + s.FrequencyBoost(c.Memory)
	return ScoredMemory{
		Memory:     c.Memory,
		Similarity: c.Similarity,
		Score:      clamp01(score),
	}
}

// Rank gates candidates on raw similarity, scores the survivors and sorts
// them by score, then newer CreatedAt, then lower id.
func (s *HybridScorer) Rank(candidates []Candidate, threshold float64, now time.Time) []ScoredMemory {
	out := make([]ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		if c.Memory == nil || !Admit(c.Similarity, threshold) {
			continue
		}
		out = append(out, s.Score(c, now))
	}
	SortScored(out)
	return out
}

// SortScored applies the deterministic result ordering.
func SortScored(results []ScoredMemory) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		return a.Memory.ID < b.Memory.ID
	})
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
