package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrMalformedEmbedding is returned when a serialized embedding cannot be decoded.
var ErrMalformedEmbedding = errors.New("malformed embedding")

// ParseEmbedding decodes a JSON array of numbers and validates it against dim.
// A dim of 0 skips the length check.
func ParseEmbedding(data []byte, dim int) (Embedding, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedEmbedding)
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbedding, err)
	}
	if values == nil {
		return nil, fmt.Errorf("%w: null payload", ErrMalformedEmbedding)
	}

	emb := Embedding(values)
	if err := emb.Validate(dim); err != nil {
		return nil, err
	}
	return emb, nil
}

// Validate checks length, finiteness and magnitude of the embedding.
func (e Embedding) Validate(dim int) error {
	if len(e) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if dim > 0 && len(e) != dim {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(e), dim)
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformedEmbedding, i)
		}
	}
	if !usableNorm(floats.Norm(e, 2)) {
		return ErrDegenerateVector
	}
	return nil
}

// MarshalEmbedding encodes the embedding as the JSON array stored in the database.
func MarshalEmbedding(e Embedding) ([]byte, error) {
	data, err := json.Marshal([]float64(e))
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return data, nil
}
