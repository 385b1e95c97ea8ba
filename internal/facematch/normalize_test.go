package facematch

import "testing"

func TestNormalizeSubjectID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "EMP-001", "EMP-001"},
		{"surrounding whitespace", "  EMP-001\t\n", "EMP-001"},
		{"decomposed accent", "Jir\u030ci", "Ji\u0159i"},
		{"composed accent unchanged", "Ji\u0159i", "Ji\u0159i"},
		{"only whitespace", "   ", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSubjectID(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeSubjectID(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
