package recommend

import (
	"github.com/hydrocore/hydrocore/internal/sensor"
)

// Range is the optimal band for one parameter class.
type Range struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Ideal float64 `yaml:"ideal"`
}

// Size returns the width of the band.
func (r Range) Size() float64 { return r.Max - r.Min }

// DefaultRanges is the built-in optimal-range table for hydroponic
// operation. Config may override individual classes at runtime.
func DefaultRanges() map[sensor.ParameterClass]Range {
	return map[sensor.ParameterClass]Range{
		sensor.ClassPH:              {Min: 5.5, Max: 6.5, Ideal: 6.0},
		sensor.ClassTemperature:     {Min: 18, Max: 26, Ideal: 22},
		sensor.ClassHumidity:        {Min: 60, Max: 80, Ideal: 70},
		sensor.ClassNutrients:       {Min: 800, Max: 1200, Ideal: 1000}, // ppm
		sensor.ClassDissolvedOxygen: {Min: 5, Max: 8, Ideal: 6.5},      // mg/L
	}
}

// variant selects the low or high side of a class's template pair.
type variant int

const (
	variantLow variant = iota
	variantHigh
)

// template is one recommendation rule: fixed title, a description format
// string taking the current reading, a category kind, and a default priority.
type template struct {
	title       string
	description string // fmt format, one %v-style verb for the current value
	kind        string
	priority    sensor.Severity
}

// templateKey addresses the rule table by class and side.
type templateKey struct {
	class sensor.ParameterClass
	v     variant
}

var templates = map[templateKey]template{
	{sensor.ClassPH, variantLow}: {
		title:       "pH Level Too Low",
		description: "Current pH is %.1f. Increase pH to optimal range (5.5-6.5) by adding pH Up solution gradually.",
		kind:        "ph",
		priority:    sensor.SeverityHigh,
	},
	{sensor.ClassPH, variantHigh}: {
		title:       "pH Level Too High",
		description: "Current pH is %.1f. Decrease pH to optimal range (5.5-6.5) by adding pH Down solution gradually.",
		kind:        "ph",
		priority:    sensor.SeverityHigh,
	},
	{sensor.ClassTemperature, variantLow}: {
		title:       "Temperature Too Low",
		description: "Current temperature is %.1f°C. Increase temperature to optimal range (18-26°C) using heating equipment.",
		kind:        "temperature",
		priority:    sensor.SeverityMedium,
	},
	{sensor.ClassTemperature, variantHigh}: {
		title:       "Temperature Too High",
		description: "Current temperature is %.1f°C. Reduce temperature to optimal range (18-26°C) using cooling systems.",
		kind:        "temperature",
		priority:    sensor.SeverityMedium,
	},
	{sensor.ClassHumidity, variantLow}: {
		title:       "Humidity Too Low",
		description: "Current humidity is %.1f%%. Increase humidity to optimal range (60-80%%) using humidifiers.",
		kind:        "humidity",
		priority:    sensor.SeverityMedium,
	},
	{sensor.ClassHumidity, variantHigh}: {
		title:       "Humidity Too High",
		description: "Current humidity is %.1f%%. Reduce humidity to optimal range (60-80%%) using dehumidifiers or ventilation.",
		kind:        "humidity",
		priority:    sensor.SeverityMedium,
	},
	{sensor.ClassNutrients, variantLow}: {
		title:       "Nutrient Concentration Low",
		description: "Current nutrient level is %.0fppm. Increase nutrient concentration to optimal range (800-1200ppm).",
		kind:        "nutrient",
		priority:    sensor.SeverityHigh,
	},
	{sensor.ClassNutrients, variantHigh}: {
		title:       "Nutrient Concentration High",
		description: "Current nutrient level is %.0fppm. Dilute nutrient solution to optimal range (800-1200ppm).",
		kind:        "nutrient",
		priority:    sensor.SeverityHigh,
	},
}

// General recommendations carry no current reading: their descriptions are
// fixed text and the zero "current value" of the legacy rule table is a
// placeholder, not a measurement.
var (
	maintenanceTemplate = template{
		title:       "Preventive Maintenance Recommended",
		description: "System has been running smoothly. Consider checking pumps, cleaning sensors, and testing backup systems.",
		kind:        "general",
		priority:    sensor.SeverityLow,
	}
	optimizationTemplate = template{
		title:       "System Optimization Opportunity",
		description: "All parameters are within normal ranges. Consider fine-tuning to ideal values for maximum yield.",
		kind:        "general",
		priority:    sensor.SeverityLow,
	}
	fallbackTemplate = template{
		title:       "System Check Required",
		description: "Unable to analyze current sensor data. Please check sensor connections and data quality.",
		kind:        "system",
		priority:    sensor.SeverityMedium,
	}
)
