package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/goclaw/recall/pkg/memory"
)

// HashBackend produces deterministic bag-of-words vectors by feature hashing.
// Texts sharing words get similar vectors, which is enough for offline
// development and tests. Identical input always yields identical output.
type HashBackend struct {
	dim int
}

// NewHashBackend creates a hash backend of the given dimension.
func NewHashBackend(dim int) *HashBackend {
	if dim <= 0 {
		dim = 1536
	}
	return &HashBackend{dim: dim}
}

// Model returns the backend's model identifier.
func (b *HashBackend) Model() string { return "fnv-hash" }

// Dimensions returns the vector length.
func (b *HashBackend) Dimensions() int { return b.dim }

// EmbedBatch embeds each text independently.
func (b *HashBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = b.vector(text)
	}
	return out, nil
}

func (b *HashBackend) vector(text string) []float32 {
	vec := make([]float32, b.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(b.dim))
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	for _, v := range vec {
		if v != 0 {
			return memory.Normalize(vec)
		}
	}
	// No word characters: fall back to a single hashed feature of the raw text.
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	vec[int(h.Sum64()%uint64(b.dim))] = 1
	return vec
}
