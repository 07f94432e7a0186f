package core

import (
	"math"
	"testing"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
	}{
		{"fraction", 0.438, 43.8},
		{"zero", 0.0, 0.0},
		{"one", 1.0, 100.0},
		{"already percentage", 43.8, 43.8},
		{"small percentage stays verbatim", 4.38, 4.38},
		{"negative clamps to zero", -0.5, 0.0},
		{"huge value clamps to hundred", 6487.0, 100.0},
		{"rounds to two decimals", 0.9999, 99.99},
		{"nan is indeterminate", math.NaN(), 50.0},
		{"positive infinity is indeterminate", math.Inf(1), 50.0},
		{"negative infinity is indeterminate", math.Inf(-1), 50.0},
		{"numeric string", "0.75", 75.0},
		{"non-numeric string is indeterminate", "invalid", 50.0},
		{"nil is indeterminate", nil, 50.0},
		{"int one", 1, 100.0},
		{"int percentage", 75, 75.0},
		{"float32 fraction", float32(0.5), 50.0},
		{"unsupported type is indeterminate", []string{"x"}, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeConfidence(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeConfidence(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeConfidenceRange(t *testing.T) {
	inputs := []interface{}{
		-100.0, -0.01, 0.0, 0.0001, 0.5, 0.99, 1.0, 1.01, 50.0, 99.99, 100.0, 100.1, 1e9,
		math.NaN(), math.Inf(1), "not a number", nil,
	}
	for _, in := range inputs {
		got := NormalizeConfidence(in)
		if got < 0 || got > 100 {
			t.Errorf("NormalizeConfidence(%v) = %v, outside [0, 100]", in, got)
		}
	}
}
