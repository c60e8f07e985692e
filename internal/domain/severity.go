package domain

import "math"

// Severity is the risk bucket derived from a CVE score
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFor buckets a score. The second return is false for scores that
// fall outside every bucket, including the gap between 0 and 0.1.
func SeverityFor(v float64) (Severity, bool) {
	switch {
	case math.IsNaN(v):
		return "", false
	case v == 0:
		return SeverityNone, true
	case v >= 0.1 && v <= 3.9:
		return SeverityLow, true
	case v > 3.9 && v <= 6.9:
		return SeverityMedium, true
	case v > 6.9 && v <= 8.9:
		return SeverityHigh, true
	case v > 8.9 && v <= 10.0:
		return SeverityCritical, true
	}
	return "", false
}
