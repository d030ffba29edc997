package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hydrocore/hydrocore/internal/alerting"
	"github.com/hydrocore/hydrocore/internal/metrics"
	"github.com/hydrocore/hydrocore/internal/persist"
	"github.com/hydrocore/hydrocore/internal/recommend"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/store"
	"github.com/hydrocore/hydrocore/internal/threshold"
)

// DefaultLookback is the measurement window fed to a recommendation run when
// the caller does not specify one.
const DefaultLookback = 24 * time.Hour

// Broadcaster is the realtime fan-out the pipeline publishes into.
type Broadcaster interface {
	PublishMeasurements(farmID string, batch []sensor.Measurement)
	PublishAlert(a *sensor.Alert)
}

// Pipeline runs every accepted reading through the full evaluation path.
type Pipeline struct {
	registry *sensor.Registry
	window   *store.Window
	alerts   *alerting.Manager
	engine   *recommend.Engine
	recs     persist.RecommendationStore
	hub      Broadcaster
	metrics  *metrics.Metrics
}

// New assembles a Pipeline from its collaborators.
func New(
	registry *sensor.Registry,
	window *store.Window,
	alerts *alerting.Manager,
	engine *recommend.Engine,
	recs persist.RecommendationStore,
	hub Broadcaster,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		registry: registry,
		window:   window,
		alerts:   alerts,
		engine:   engine,
		recs:     recs,
		hub:      hub,
		metrics:  m,
	}
}

// Record accepts one sensor reading. It validates, stores it in the window,
// evaluates thresholds, and broadcasts both the farm's updated snapshot and
// any newly opened alert. The returned verdict reports the threshold outcome;
// the alert is non-nil only when a new one was opened.
//
// A reading from a sensor with no registered bounds is stored and broadcast
// but not evaluated.
func (p *Pipeline) Record(ctx context.Context, m sensor.Measurement) (threshold.Verdict, *sensor.Alert, error) {
	if err := m.Validate(); err != nil {
		p.metrics.ReadingsRejected.Inc()
		return threshold.Verdict{}, nil, fmt.Errorf("record reading: %w", err)
	}

	p.window.Add(m)
	p.metrics.ReadingsTotal.WithLabelValues(string(m.Class)).Inc()

	var (
		v     threshold.Verdict
		alert *sensor.Alert
	)
	b, ok := p.registry.Bounds(m.SensorID)
	if ok {
		var err error
		v, alert, err = p.alerts.OnMeasurement(ctx, m, b)
		if err != nil {
			return v, nil, err
		}
	} else {
		slog.Debug("ingest: unregistered sensor, skipping evaluation",
			"sensor_id", m.SensorID, "farm_id", m.FarmID)
	}

	if v.Anomalous() {
		p.metrics.AnomaliesTotal.WithLabelValues(string(m.Class)).Inc()
		if alert == nil {
			p.metrics.AlertsSuppressed.Inc()
		}
	}

	// Snapshot first, alert second: a subscriber reacting to the alert can
	// rely on the reading already being visible.
	p.hub.PublishMeasurements(m.FarmID, p.window.Latest(m.FarmID))
	if alert != nil {
		p.metrics.AlertsOpened.WithLabelValues(string(alert.Severity)).Inc()
		p.hub.PublishAlert(alert)
		slog.Info("ingest: alert opened",
			"alert_id", alert.ID, "farm_id", alert.FarmID,
			"class", alert.Class, "severity", alert.Severity)
	}
	return v, alert, nil
}

// Recommend runs the recommendation engine over the farm's readings from the
// past lookback period (DefaultLookback when lookback <= 0), persists the
// resulting batch, and returns it. A farm with no recent readings yields an
// empty batch without invoking the engine or persistence.
func (p *Pipeline) Recommend(ctx context.Context, farmID string, lookback time.Duration) ([]sensor.Recommendation, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	p.metrics.RecommendationRuns.Inc()

	byClass := p.window.Recent(farmID, lookback)
	// No recent readings means there is nothing to analyze: the engine would
	// count an empty farm as stable and invent a maintenance suggestion.
	if len(byClass) == 0 {
		slog.Debug("ingest: no recent readings, skipping recommendation run", "farm_id", farmID)
		return nil, nil
	}
	recs := p.engine.Generate(byClass)
	for i := range recs {
		recs[i].FarmID = farmID
	}

	if err := p.recs.InsertRecommendations(ctx, recs); err != nil {
		return nil, &sensor.PersistenceError{Op: "recommendations", Err: err}
	}
	p.metrics.Recommendations.Add(float64(len(recs)))
	return recs, nil
}

// MarkRead and Resolve expose the alert lifecycle through the pipeline so the
// API layer has a single dependency.

func (p *Pipeline) MarkRead(ctx context.Context, id string) (*sensor.Alert, error) {
	return p.alerts.MarkRead(ctx, id)
}

func (p *Pipeline) Resolve(ctx context.Context, id string) (*sensor.Alert, error) {
	return p.alerts.Resolve(ctx, id)
}
