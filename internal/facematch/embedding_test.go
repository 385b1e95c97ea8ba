package facematch

import (
	"errors"
	"math"
	"testing"
)

func TestParseEmbedding(t *testing.T) {
	emb, err := ParseEmbedding([]byte(`[0.1, -0.2, 0.3]`), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != 3 || emb[1] != -0.2 {
		t.Errorf("unexpected embedding %v", emb)
	}
}

func TestParseEmbedding_AnyDimension(t *testing.T) {
	emb, err := ParseEmbedding([]byte(`[1, 2]`), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != 2 {
		t.Errorf("expected 2 values, got %d", len(emb))
	}
}

func TestParseEmbedding_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		dim     int
		wantErr error
	}{
		{"empty payload", ``, 3, ErrMalformedEmbedding},
		{"null", `null`, 3, ErrMalformedEmbedding},
		{"not json", `{corrupt`, 3, ErrMalformedEmbedding},
		{"object", `{"a": 1}`, 3, ErrMalformedEmbedding},
		{"strings", `["a", "b", "c"]`, 3, ErrMalformedEmbedding},
		{"empty array", `[]`, 3, ErrDimensionMismatch},
		{"wrong length", `[1, 2]`, 3, ErrDimensionMismatch},
		{"zero vector", `[0, 0, 0]`, 3, ErrDegenerateVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEmbedding([]byte(tt.data), tt.dim)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_NonFinite(t *testing.T) {
	tests := []Embedding{
		{1, math.NaN(), 0},
		{math.Inf(1), 0, 0},
		{0, 0, math.Inf(-1)},
	}
	for _, e := range tests {
		if err := e.Validate(3); !errors.Is(err, ErrMalformedEmbedding) {
			t.Errorf("Validate(%v) = %v, want ErrMalformedEmbedding", e, err)
		}
	}
}

func TestValidate_Magnitude(t *testing.T) {
	for _, e := range []Embedding{{1e-200, 0}, {1e200, 0}} {
		if err := e.Validate(2); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", e, err)
		}
	}
	if err := (Embedding{math.MaxFloat64, math.MaxFloat64}).Validate(2); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("expected ErrDegenerateVector for overflowing norm, got %v", err)
	}
}

func TestMarshalEmbedding(t *testing.T) {
	data, err := MarshalEmbedding(Embedding{0.5, -1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `[0.5,-1,2]` {
		t.Errorf("unexpected JSON %s", data)
	}

	back, err := ParseEmbedding(data, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back[2] != 2 {
		t.Errorf("unexpected decoded value %v", back)
	}
}
