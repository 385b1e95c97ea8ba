package facematch

import "testing"

func TestBBoxArea(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		expected float64
	}{
		{"unit square", []float64{0, 0, 1, 1}, 1},
		{"offset box", []float64{10, 20, 110, 170}, 15000},
		{"inverted box", []float64{5, 5, 1, 1}, 0},
		{"zero width", []float64{5, 0, 5, 10}, 0},
		{"too short", []float64{0, 0, 1}, 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BBoxArea(tt.bbox); got != tt.expected {
				t.Errorf("BBoxArea(%v) = %v, want %v", tt.bbox, got, tt.expected)
			}
		})
	}
}
