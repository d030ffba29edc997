package threshold

import (
	"github.com/hydrocore/hydrocore/internal/sensor"
)

// Kind classifies a verdict.
type Kind int

const (
	Normal Kind = iota
	BelowMin
	AboveMax
)

// String returns the verdict kind as a short lowercase label.
func (k Kind) String() string {
	switch k {
	case BelowMin:
		return "below_min"
	case AboveMax:
		return "above_max"
	default:
		return "normal"
	}
}

// Verdict is the outcome of evaluating one measurement against its bounds.
type Verdict struct {
	Kind Kind

	// Ratio is value divided by the violated threshold. Zero for Normal.
	Ratio float64

	// Limit is the threshold that was violated. Zero for Normal.
	Limit float64
}

// Anomalous reports whether the verdict is a threshold breach.
func (v Verdict) Anomalous() bool { return v.Kind != Normal }

// Evaluate compares a measurement against the sensor's bounds.
// A minimum breach wins over a maximum breach when both thresholds are set
// (they cannot both trigger for a sane min <= max configuration).
func Evaluate(m sensor.Measurement, b sensor.Bounds) Verdict {
	if b.Min != nil && m.Value < *b.Min {
		return Verdict{Kind: BelowMin, Ratio: m.Value / *b.Min, Limit: *b.Min}
	}
	if b.Max != nil && m.Value > *b.Max {
		return Verdict{Kind: AboveMax, Ratio: m.Value / *b.Max, Limit: *b.Max}
	}
	return Verdict{Kind: Normal}
}

// Severity derives the alert severity for an anomalous verdict: high when the
// reading is more than 20% beyond the threshold, medium otherwise. The
// comparison is done against the limit itself rather than the ratio so a zero
// threshold cannot divide the decision away.
//
// For a Normal verdict Severity returns SeverityLow; callers only use the
// result when the verdict is anomalous.
func (v Verdict) Severity(value float64) sensor.Severity {
	switch v.Kind {
	case BelowMin:
		if value < v.Limit*0.8 {
			return sensor.SeverityHigh
		}
		return sensor.SeverityMedium
	case AboveMax:
		if value > v.Limit*1.2 {
			return sensor.SeverityHigh
		}
		return sensor.SeverityMedium
	default:
		return sensor.SeverityLow
	}
}
