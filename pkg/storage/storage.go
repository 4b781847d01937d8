// Package storage holds the memory store adapters and the helpers they share:
// the record codec, insert preparation and the store error types.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/goclaw/recall/pkg/memory"
)

// NotFoundError indicates that the requested entity was not found. It
// matches memory.ErrNotFound so callers see one uniform not-found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// Is reports memory.ErrNotFound as the sentinel for this error.
func (e *NotFoundError) Is(target error) bool {
	return target == memory.ErrNotFound
}

// DuplicateKeyError indicates that an entity with the given ID already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying codec error.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NotFound returns the uniform not-found error for a memory id.
func NotFound(id string) error {
	return &NotFoundError{EntityType: "memory", ID: id}
}

// PrepareInsert validates m against dim and returns the copy to persist.
// A zero CreatedAt becomes now; AccessedAt starts at CreatedAt.
func PrepareInsert(m *memory.Memory, dim int, now time.Time) (*memory.Memory, error) {
	if err := memory.ValidateForInsert(m, dim); err != nil {
		return nil, err
	}
	rec := m.Clone()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.AccessedAt = rec.CreatedAt
	rec.AccessCount = 0
	return rec, nil
}

// Encode serializes a memory record.
func Encode(m *memory.Memory) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, &SerializationError{Operation: "marshal", Cause: err}
	}
	return data, nil
}

// Decode deserializes a memory record.
func Decode(data []byte) (*memory.Memory, error) {
	var m memory.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &SerializationError{Operation: "unmarshal", Cause: err}
	}
	return &m, nil
}

// EncodeMetadata serializes metadata; nil encodes as "{}".
func EncodeMetadata(meta memory.Metadata) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", &SerializationError{Operation: "marshal metadata", Cause: err}
	}
	return string(data), nil
}

// DecodeMetadata parses metadata written by EncodeMetadata.
func DecodeMetadata(raw string) (memory.Metadata, error) {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil, nil
	}
	var meta memory.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, &SerializationError{Operation: "unmarshal metadata", Cause: err}
	}
	return meta, nil
}

// EncodeVector packs vec as little-endian float32 values. Nil stays nil.
func EncodeVector(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a vector written by EncodeVector.
func DecodeVector(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw)%4 != 0 {
		return nil, &SerializationError{Operation: "decode vector", Cause: fmt.Errorf("length %d is not a multiple of 4", len(raw))}
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}
