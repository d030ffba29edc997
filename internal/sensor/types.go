package sensor

import (
	"math"
	"time"
)

// ParameterClass is the dimension a sensor measures.
type ParameterClass string

// Known parameter classes. The recommendation engine only understands these;
// measurements with other classes still flow through thresholding and
// broadcast untouched.
const (
	ClassPH              ParameterClass = "ph"
	ClassTemperature     ParameterClass = "temperature"
	ClassHumidity        ParameterClass = "humidity"
	ClassNutrients       ParameterClass = "nutrients"
	ClassDissolvedOxygen ParameterClass = "dissolved_oxygen"
)

// Severity is the urgency attached to alerts and recommendations.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort weight of a severity; unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AlertState is the lifecycle state of an alert.
type AlertState string

const (
	AlertOpen     AlertState = "open"
	AlertRead     AlertState = "read"
	AlertResolved AlertState = "resolved"
)

// Measurement is a single reading from one sensor. Immutable once created;
// ordering is by ObservedAt.
type Measurement struct {
	SensorID   string         `json:"sensor_id" bson:"sensor_id"`
	FarmID     string         `json:"farm_id" bson:"farm_id"`
	Class      ParameterClass `json:"class" bson:"class"`
	Value      float64        `json:"value" bson:"value"`
	Unit       string         `json:"unit,omitempty" bson:"unit,omitempty"`
	ObservedAt time.Time      `json:"observed_at" bson:"observed_at"`
}

// Validate checks the structural constraints on a measurement. A nil error
// means the reading is safe to evaluate.
func (m Measurement) Validate() error {
	if m.SensorID == "" {
		return &ValidationError{Field: "sensor_id", Reason: "missing sensor reference"}
	}
	if m.FarmID == "" {
		return &ValidationError{Field: "farm_id", Reason: "missing farm reference"}
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return &ValidationError{Field: "value", Reason: "not a finite number"}
	}
	if m.ObservedAt.IsZero() {
		return &ValidationError{Field: "observed_at", Reason: "missing timestamp"}
	}
	return nil
}

// Bounds is the registered metadata for one sensor, including its optional
// alerting thresholds. Owned by the external sensor registry; the core treats
// it as read-only input.
type Bounds struct {
	SensorID string         `json:"sensor_id"`
	FarmID   string         `json:"farm_id"`
	Name     string         `json:"name"`
	Class    ParameterClass `json:"class"`
	Unit     string         `json:"unit"`

	// Min and Max are nil when the corresponding threshold is not configured.
	Min *float64 `json:"min_threshold,omitempty"`
	Max *float64 `json:"max_threshold,omitempty"`
}

// Alert is a surfaced anomaly. Created only by the alerting manager and
// mutated only through its lifecycle transitions; never deleted.
type Alert struct {
	ID         string         `json:"id" bson:"_id"`
	FarmID     string         `json:"farm_id" bson:"farm_id"`
	SensorID   string         `json:"sensor_id,omitempty" bson:"sensor_id,omitempty"`
	Class      ParameterClass `json:"class" bson:"class"`
	Title      string         `json:"title" bson:"title"`
	Message    string         `json:"message" bson:"message"`
	Severity   Severity       `json:"severity" bson:"severity"`
	State      AlertState     `json:"state" bson:"state"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

// Recommendation is one ranked remediation suggestion. Batches are
// independent: there is no cross-batch identity or merging.
type Recommendation struct {
	ID          string    `json:"id" bson:"_id"`
	FarmID      string    `json:"farm_id" bson:"farm_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	// Kind is the recommendation category: a parameter class name, or
	// "general" / "system" for cross-parameter suggestions.
	Kind        string    `json:"kind" bson:"kind"`
	Priority    Severity  `json:"priority" bson:"priority"`
	Confidence  float64   `json:"confidence" bson:"confidence"`
	GeneratedAt time.Time `json:"generated_at" bson:"generated_at"`
}
