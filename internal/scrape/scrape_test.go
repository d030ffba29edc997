package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydrocore/hydrocore/internal/metrics"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/threshold"
)

// gatewayMetrics is a realistic exposition from a field gateway.
const gatewayMetrics = `
# HELP greenhouse_ph Current pH of the nutrient solution.
# TYPE greenhouse_ph gauge
greenhouse_ph{tank="a"} 5.85

# HELP greenhouse_water_temp_celsius Water temperature.
# TYPE greenhouse_water_temp_celsius gauge
greenhouse_water_temp_celsius{tank="a"} 21.4

# HELP greenhouse_uptime_seconds_total Gateway uptime.
# TYPE greenhouse_uptime_seconds_total counter
greenhouse_uptime_seconds_total 86400
`

type captureRecorder struct {
	mu       sync.Mutex
	readings []sensor.Measurement
}

func (c *captureRecorder) Record(_ context.Context, m sensor.Measurement) (threshold.Verdict, *sensor.Alert, error) {
	c.mu.Lock()
	c.readings = append(c.readings, m)
	c.mu.Unlock()
	return threshold.Verdict{}, nil, nil
}

func (c *captureRecorder) snapshot() []sensor.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sensor.Measurement(nil), c.readings...)
}

func ptr(v float64) *float64 { return &v }

func testRegistry() *sensor.Registry {
	return sensor.NewRegistry(
		sensor.Bounds{
			SensorID: "ph-1", FarmID: "farm-1", Name: "pH Sensor",
			Class: sensor.ClassPH, Unit: "pH", Min: ptr(5.5), Max: ptr(6.5),
		},
		sensor.Bounds{
			SensorID: "temp-1", FarmID: "farm-1", Name: "Water Temp",
			Class: sensor.ClassTemperature, Unit: "°C", Min: ptr(18), Max: ptr(26),
		},
	)
}

func TestScrapeOnce_MapsMetricsToReadings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(gatewayMetrics))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	r := NewRunner(nil, 0, testRegistry(), rec, metrics.New(prometheus.NewRegistry()))
	r.scrapeOnce(context.Background(), Source{
		ID:       "gw-1",
		Endpoint: srv.URL,
		Metrics: map[string]string{
			"greenhouse_ph":                 "ph-1",
			"greenhouse_water_temp_celsius": "temp-1",
		},
	})

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("readings: got %d, want 2", len(got))
	}
	byID := map[string]sensor.Measurement{}
	for _, m := range got {
		byID[m.SensorID] = m
	}
	ph := byID["ph-1"]
	if ph.Value != 5.85 || ph.Class != sensor.ClassPH || ph.FarmID != "farm-1" || ph.Unit != "pH" {
		t.Errorf("ph reading: got %+v", ph)
	}
	temp := byID["temp-1"]
	if temp.Value != 21.4 || temp.Class != sensor.ClassTemperature {
		t.Errorf("temp reading: got %+v", temp)
	}
	if ph.ObservedAt.IsZero() {
		t.Error("observed_at: missing")
	}
}

func TestScrapeOnce_AbsentMetricSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("greenhouse_ph 6.0\n"))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	r := NewRunner(nil, 0, testRegistry(), rec, metrics.New(prometheus.NewRegistry()))
	r.scrapeOnce(context.Background(), Source{
		ID:       "gw-1",
		Endpoint: srv.URL,
		Metrics: map[string]string{
			"greenhouse_ph":       "ph-1",
			"greenhouse_humidity": "hum-1", // not in the exposition
		},
	})

	if got := rec.snapshot(); len(got) != 1 || got[0].SensorID != "ph-1" {
		t.Errorf("readings: got %+v, want only ph-1", got)
	}
}

func TestScrapeOnce_UnregisteredSensorSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("greenhouse_ph 6.0\n"))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	r := NewRunner(nil, 0, testRegistry(), rec, metrics.New(prometheus.NewRegistry()))
	r.scrapeOnce(context.Background(), Source{
		ID:       "gw-1",
		Endpoint: srv.URL,
		Metrics:  map[string]string{"greenhouse_ph": "no-such-sensor"},
	})

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("readings: got %+v, want none", got)
	}
}

func TestScrapeOnce_EndpointDown(t *testing.T) {
	rec := &captureRecorder{}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRunner(nil, 0, testRegistry(), rec, m)

	r.scrapeOnce(context.Background(), Source{
		ID:       "gw-down",
		Endpoint: "http://127.0.0.1:1",
		Metrics:  map[string]string{"greenhouse_ph": "ph-1"},
	})

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("readings from dead endpoint: got %+v", got)
	}
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte("greenhouse_ph 6.0\n"))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	r := NewRunner([]Source{{
		ID:       "gw-1",
		Endpoint: srv.URL,
		Interval: 10 * time.Millisecond,
		Metrics:  map[string]string{"greenhouse_ph": "ph-1"},
	}}, 0, testRegistry(), rec, metrics.New(prometheus.NewRegistry()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx) // returns when ctx expires

	mu.Lock()
	defer mu.Unlock()
	if hits < 2 {
		t.Errorf("scrapes before cancel: got %d, want >= 2", hits)
	}
}
