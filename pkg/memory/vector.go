package memory

import (
	"math"
	"sort"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|). It returns 0 when either
// vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Normalize scales vec to unit length in place. Zero vectors are left as is.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// RankCandidates scores each record with an embedding against query,
// orders them by descending similarity (ties by id) and keeps at most limit.
// Adapters without a native vector index use it for brute-force queries.
func RankCandidates(query []float32, records []*Memory, limit int) []Candidate {
	out := make([]Candidate, 0, len(records))
	for _, m := range records {
		if len(m.Embedding) == 0 {
			continue
		}
		out = append(out, Candidate{Memory: m, Similarity: CosineSimilarity(query, m.Embedding)})
	}
	SortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortCandidates orders candidates by descending similarity, then id.
func SortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Similarity != c[j].Similarity {
			return c[i].Similarity > c[j].Similarity
		}
		return c[i].Memory.ID < c[j].Memory.ID
	})
}
