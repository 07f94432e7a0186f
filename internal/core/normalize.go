package core

import (
	"math"
	"strconv"
)

// indeterminateConfidence is returned when a confidence value cannot be
// interpreted at all. The midpoint deliberately signals "unknown" without
// biasing toward either verdict.
const indeterminateConfidence = 50.0

// NormalizeConfidence converts an arbitrary confidence value into a
// percentage within [0,100].
//
// Producers are inconsistent about scale: some emit probabilities in
// [0,1], others already-scaled percentages. Values above 1 are assumed
// to be percentages and capped at 100; values at or below 1 are treated
// as probabilities, clamped to [0,1] and scaled. Strings are parsed
// first; anything unparseable, non-numeric, NaN or infinite maps to 50.
func NormalizeConfidence(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return normalizeFloat(v)
	case float32:
		return normalizeFloat(float64(v))
	case int:
		return normalizeFloat(float64(v))
	case int64:
		return normalizeFloat(float64(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return indeterminateConfidence
		}
		return normalizeFloat(f)
	default:
		return indeterminateConfidence
	}
}

func normalizeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return indeterminateConfidence
	}
	if f > 1 {
		if f <= 100 {
			return round2(f)
		}
		return 100.0
	}
	if f < 0 {
		f = 0
	}
	return round2(f * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
