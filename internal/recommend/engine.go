package recommend

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

const (
	// maxRecommendations caps each generated batch.
	maxRecommendations = 5

	// minReadings is the sample count below which confidence falls back to
	// the insufficient-data score.
	minReadings = 3

	// varianceSample bounds how many recent values feed the variance.
	varianceSample = 10

	lowDataConfidence     = 0.6
	maintenanceConfidence = 0.8

	// optimizationCutoff is the minimum optimization potential that warrants
	// surfacing a fine-tuning suggestion.
	optimizationCutoff = 0.3
)

// Engine generates recommendation batches. It is stateless per invocation
// and safe for concurrent use; the only mutable state is the optimal-range
// table, which config reload may swap.
type Engine struct {
	mu     sync.RWMutex
	ranges map[sensor.ParameterClass]Range

	now func() time.Time
}

// New creates an Engine with the built-in optimal ranges.
func New() *Engine {
	return &Engine{
		ranges: DefaultRanges(),
		now:    time.Now,
	}
}

// SetRanges overrides the optimal-range table for the given classes, keeping
// defaults for classes not present in overrides.
func (e *Engine) SetRanges(overrides map[sensor.ParameterClass]Range) {
	next := DefaultRanges()
	for class, r := range overrides {
		next[class] = r
	}
	e.mu.Lock()
	e.ranges = next
	e.mu.Unlock()
}

func (e *Engine) rangeTable() map[sensor.ParameterClass]Range {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ranges
}

// Generate analyzes recent measurements grouped by parameter class and
// returns a ranked batch of at most five recommendations. Each class's slice
// must be ordered most-recent-first; the caller bounds the window.
//
// Generate never fails: an internal fault is logged and degraded to the
// single fixed fallback recommendation.
func (e *Engine) Generate(byClass map[sensor.ParameterClass][]sensor.Measurement) (recs []sensor.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recommend: analysis fault, returning fallback", "panic", r)
			recs = e.fallback()
		}
	}()

	ranges := e.rangeTable()
	now := e.now()

	// Iterate classes in a fixed order so ties in the final ranking are
	// deterministic under the stable sort.
	classes := make([]sensor.ParameterClass, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	var out []sensor.Recommendation
	for _, class := range classes {
		readings := byClass[class]
		if len(readings) == 0 {
			continue
		}
		opt, known := ranges[class]
		if !known {
			continue
		}

		current := readings[0].Value
		var v variant
		switch {
		case current < opt.Min:
			v = variantLow
		case current > opt.Max:
			v = variantHigh
		default:
			continue
		}

		tpl, ok := templates[templateKey{class, v}]
		if !ok {
			continue
		}
		out = append(out, sensor.Recommendation{
			ID:          uuid.NewString(),
			Title:       tpl.title,
			Description: fmt.Sprintf(tpl.description, current),
			Kind:        tpl.kind,
			Priority:    tpl.priority,
			Confidence:  confidence(readings),
			GeneratedAt: now,
		})
	}

	if stable(byClass, ranges) {
		out = append(out, sensor.Recommendation{
			ID:          uuid.NewString(),
			Title:       maintenanceTemplate.title,
			Description: maintenanceTemplate.description,
			Kind:        maintenanceTemplate.kind,
			Priority:    maintenanceTemplate.priority,
			Confidence:  maintenanceConfidence,
			GeneratedAt: now,
		})
		if score := optimizationPotential(byClass, ranges); score > optimizationCutoff {
			out = append(out, sensor.Recommendation{
				ID:          uuid.NewString(),
				Title:       optimizationTemplate.title,
				Description: optimizationTemplate.description,
				Kind:        optimizationTemplate.kind,
				Priority:    optimizationTemplate.priority,
				Confidence:  score,
				GeneratedAt: now,
			})
		}
	}

	rank(out)
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

// confidence scores trust in a single-point recommendation from the
// stability of the recent series. Fewer than three readings is insufficient
// data; otherwise noisier series score lower.
func confidence(readings []sensor.Measurement) float64 {
	if len(readings) < minReadings {
		return lowDataConfidence
	}

	n := len(readings)
	if n > varianceSample {
		n = varianceSample
	}
	values := make([]float64, 0, n)
	for _, r := range readings[:n] {
		values = append(values, r.Value)
	}

	c := 0.9 - variance(values)/100
	c = math.Min(0.95, math.Max(0.5, c))
	return math.Round(c*100) / 100
}

// variance is the population variance of values.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// stable reports whether every class with data sits inside its optimal range.
func stable(byClass map[sensor.ParameterClass][]sensor.Measurement, ranges map[sensor.ParameterClass]Range) bool {
	for class, readings := range byClass {
		opt, known := ranges[class]
		if !known || len(readings) == 0 {
			continue
		}
		current := readings[0].Value
		if current < opt.Min || current > opt.Max {
			return false
		}
	}
	return true
}

// optimizationPotential is the normalized distance from ideal, averaged over
// all classes with data: 0 means every reading is at its ideal, 1 means
// readings sit at their range boundaries.
func optimizationPotential(byClass map[sensor.ParameterClass][]sensor.Measurement, ranges map[sensor.ParameterClass]Range) float64 {
	var total float64
	var count int
	for class, readings := range byClass {
		opt, known := ranges[class]
		if !known || len(readings) == 0 {
			continue
		}
		current := readings[0].Value
		score := math.Min(1, math.Abs(current-opt.Ideal)/(opt.Size()/2))
		total += score
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// rank sorts by (priority, confidence) descending. The sort is stable so
// equal entries keep their derivation order.
func rank(recs []sensor.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i].Priority.Rank(), recs[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return recs[i].Confidence > recs[j].Confidence
	})
}

// fallback is the degraded-analysis batch: one fixed medium-priority check
// request at half confidence.
func (e *Engine) fallback() []sensor.Recommendation {
	return []sensor.Recommendation{{
		ID:          uuid.NewString(),
		Title:       fallbackTemplate.title,
		Description: fallbackTemplate.description,
		Kind:        fallbackTemplate.kind,
		Priority:    fallbackTemplate.priority,
		Confidence:  0.5,
		GeneratedAt: time.Now(),
	}}
}
