// Package facematch holds the pure math behind face verification: embedding
// decoding, cosine scoring and the geofence distance check.
package facematch

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDimensionMismatch is returned when two embeddings differ in length or are empty.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDegenerateVector is returned when an embedding has zero or unrepresentable magnitude.
	ErrDegenerateVector = errors.New("embedding has zero magnitude")
)

// Embedding is a fixed-length face descriptor produced by the extractor.
type Embedding []float64

// CosineSimilarity returns dot(a,b) / (|a|*|b|) in [-1, 1]. It never returns
// NaN or Inf: vectors whose magnitude cannot be represented are degenerate.
func CosineSimilarity(a, b Embedding) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrDimensionMismatch
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if !usableNorm(normA) || !usableNorm(normB) {
		return 0, ErrDegenerateVector
	}

	// Both sides are scaled to unit length before multiplying, so neither
	// the dot product nor normA*normB can overflow or underflow.
	var similarity float64
	for i := range a {
		similarity += (a[i] / normA) * (b[i] / normB)
	}
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return 0, ErrDegenerateVector
	}
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity, nil
}

func usableNorm(n float64) bool {
	return n > 0 && !math.IsInf(n, 0) && !math.IsNaN(n)
}

// Float32 converts the embedding for float32 vector stores (pgvector, hnsw).
func (e Embedding) Float32() []float32 {
	out := make([]float32, len(e))
	for i, v := range e {
		out[i] = float32(v)
	}
	return out
}

// FromFloat32 widens a float32 vector into an Embedding.
func FromFloat32(v []float32) Embedding {
	out := make(Embedding, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
