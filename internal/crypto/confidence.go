package crypto

import (
	"math"
	"strconv"
)

// FormatConfidence renders a confidence value as a fixed four-digit
// decimal string ("0.9200"). Canonical documents ban raw floats, so this
// is the only representation of a confidence that ever gets signed.
func FormatConfidence(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrConfidenceRange
	}
	if v < 0 || v > 1 {
		return "", ErrConfidenceRange
	}
	return strconv.FormatFloat(v, 'f', 4, 64), nil
}
