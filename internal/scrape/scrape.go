package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/hydrocore/hydrocore/internal/metrics"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/threshold"
)

const (
	// DefaultInterval is the poll period when a source does not set one.
	DefaultInterval = 30 * time.Second

	scrapeTimeout = 10 * time.Second
)

// Source describes one exposition endpoint to poll.
type Source struct {
	// ID names the source in logs and metrics.
	ID string

	// Endpoint is the URL of the Prometheus text exposition.
	Endpoint string

	// Interval overrides the runner's poll period for this source.
	Interval time.Duration

	// Metrics maps exposition metric names to registered sensor IDs.
	Metrics map[string]string
}

// Recorder is the ingest entry point the runner feeds readings into.
type Recorder interface {
	Record(ctx context.Context, m sensor.Measurement) (threshold.Verdict, *sensor.Alert, error)
}

// Runner polls every configured source and records the extracted readings.
type Runner struct {
	sources  []Source
	registry *sensor.Registry
	rec      Recorder
	metrics  *metrics.Metrics
	interval time.Duration
	client   *http.Client

	now func() time.Time
}

// NewRunner builds a Runner. interval <= 0 selects DefaultInterval.
func NewRunner(sources []Source, interval time.Duration, registry *sensor.Registry, rec Recorder, m *metrics.Metrics) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		sources:  sources,
		registry: registry,
		rec:      rec,
		metrics:  m,
		interval: interval,
		client:   &http.Client{Timeout: scrapeTimeout},
		now:      time.Now,
	}
}

// Run polls each source on its interval until ctx is cancelled. Sources with
// their own Interval get a dedicated ticker; the rest share the runner's.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range r.sources {
		interval := src.Interval
		if interval <= 0 {
			interval = r.interval
		}
		wg.Add(1)
		go func(src Source, interval time.Duration) {
			defer wg.Done()
			r.poll(ctx, src, interval)
		}(src, interval)
	}
	wg.Wait()
}

func (r *Runner) poll(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Scrape immediately on start rather than waiting a full interval.
	r.scrapeOnce(ctx, src)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scrapeOnce(ctx, src)
		}
	}
}

// scrapeOnce fetches one exposition and records every mapped reading. Scrape
// failures are counted and logged; they never propagate.
func (r *Runner) scrapeOnce(ctx context.Context, src Source) {
	mfs, err := r.fetch(ctx, src.Endpoint)
	if err != nil {
		r.metrics.ScrapeErrors.WithLabelValues(src.ID).Inc()
		slog.Warn("scrape: fetch failed", "source", src.ID, "endpoint", src.Endpoint, "err", err)
		return
	}

	observed := r.now().UTC()
	for metricName, sensorID := range src.Metrics {
		value, ok := firstValue(mfs[metricName])
		if !ok {
			slog.Debug("scrape: metric absent", "source", src.ID, "metric", metricName)
			continue
		}
		b, registered := r.registry.Bounds(sensorID)
		if !registered {
			slog.Warn("scrape: mapped sensor not registered", "source", src.ID, "sensor_id", sensorID)
			continue
		}

		m := sensor.Measurement{
			SensorID:   sensorID,
			FarmID:     b.FarmID,
			Class:      b.Class,
			Value:      value,
			Unit:       b.Unit,
			ObservedAt: observed,
		}
		if _, _, err := r.rec.Record(ctx, m); err != nil {
			slog.Error("scrape: record reading", "source", src.ID, "sensor_id", sensorID, "err", err)
		}
	}
}

// fetch performs an HTTP GET and parses the Prometheus text exposition.
func (r *Runner) fetch(ctx context.Context, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseExposition(resp.Body)
}

// parseExposition decodes a text exposition into metric families. A partial
// result with a non-fatal parse warning is still returned successfully.
func parseExposition(body io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(body)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return mfs, nil
}

// firstValue extracts the first sample's value from a metric family. Sensor
// gateways expose one sample per gauge, so the first is the reading.
func firstValue(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0, false
	}
	m := mf.GetMetric()[0]
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}
