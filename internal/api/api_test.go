package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydrocore/hydrocore/internal/alerting"
	"github.com/hydrocore/hydrocore/internal/ingest"
	"github.com/hydrocore/hydrocore/internal/metrics"
	"github.com/hydrocore/hydrocore/internal/persist"
	"github.com/hydrocore/hydrocore/internal/recommend"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/store"
	"github.com/hydrocore/hydrocore/internal/ws"
)

func ptr(v float64) *float64 { return &v }

// newServer builds a Handler backed by a real pipeline with in-memory
// persistence and returns its test server.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := sensor.NewRegistry(sensor.Bounds{
		SensorID: "ph-1", FarmID: "farm-1", Name: "pH Sensor",
		Class: sensor.ClassPH, Unit: "pH", Min: ptr(5.5), Max: ptr(6.5),
	})
	hub := ws.New()
	p := ingest.New(
		registry,
		store.New(24*time.Hour, 100),
		alerting.NewManager(persist.Discard{}, time.Hour),
		recommend.New(),
		persist.Discard{},
		hub,
		metrics.New(prometheus.NewRegistry()),
	)

	srv := httptest.NewServer(New(p, hub, registry))
	t.Cleanup(srv.Close)
	return srv
}

func postReading(t *testing.T, srv *httptest.Server, value float64) (*http.Response, ReadingResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"sensor_id":   "ph-1",
		"farm_id":     "farm-1",
		"class":       "ph",
		"value":       value,
		"unit":        "pH",
		"observed_at": time.Now().UTC().Format(time.RFC3339),
	})
	resp, err := http.Post(srv.URL+"/api/v1/readings", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /readings: %v", err)
	}
	defer resp.Body.Close()

	var out ReadingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func doJSON(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body) //nolint:errcheck
	return resp, buf.Bytes()
}

// --- readings ---------------------------------------------------------------

func TestReadings_Normal(t *testing.T) {
	srv := newServer(t)

	resp, out := postReading(t, srv, 6.0)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if out.Status != "normal" || out.Alert != nil {
		t.Errorf("response: got %+v, want normal without alert", out)
	}
}

func TestReadings_AnomalyReturnsAlert(t *testing.T) {
	srv := newServer(t)

	resp, out := postReading(t, srv, 5.0)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", resp.StatusCode)
	}
	if out.Status != "below_min" {
		t.Errorf("status field: got %q, want below_min", out.Status)
	}
	if out.Alert == nil || out.Alert.Severity != sensor.SeverityMedium {
		t.Errorf("alert: got %+v, want medium severity alert", out.Alert)
	}
}

func TestReadings_SuppressedAnomalyHasNoAlert(t *testing.T) {
	srv := newServer(t)

	postReading(t, srv, 5.0)
	resp, out := postReading(t, srv, 4.9)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (no new alert)", resp.StatusCode)
	}
	if out.Alert != nil {
		t.Errorf("suppressed anomaly returned alert %+v", out.Alert)
	}
}

func TestReadings_Invalid(t *testing.T) {
	srv := newServer(t)

	body := []byte(`{"sensor_id": "ph-1", "class": "ph", "value": 6.0}`) // no farm_id
	resp, err := http.Post(srv.URL+"/api/v1/readings", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestReadings_MethodNotAllowed(t *testing.T) {
	srv := newServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/readings")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

// --- recommendations --------------------------------------------------------

func TestRecommendations(t *testing.T) {
	srv := newServer(t)

	for _, v := range []float64{5.0, 5.1, 5.0} {
		postReading(t, srv, v)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/farms/farm-1/recommendations")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var out RecommendationsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FarmID != "farm-1" {
		t.Errorf("farm_id: got %q, want farm-1", out.FarmID)
	}
	if len(out.Recommendations) == 0 {
		t.Fatal("expected recommendations for out-of-range pH")
	}
	for _, r := range out.Recommendations {
		if r.FarmID != "farm-1" {
			t.Errorf("recommendation %q farm: got %q", r.Title, r.FarmID)
		}
	}
}

func TestRecommendations_EmptyFarm(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/farms/farm-9/recommendations")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var out RecommendationsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Recommendations == nil || len(out.Recommendations) != 0 {
		t.Errorf("recommendations: got %v, want empty array", out.Recommendations)
	}
}

func TestRecommendations_BadLookback(t *testing.T) {
	srv := newServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/farms/farm-1/recommendations?lookback=yesterday")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

// --- alert lifecycle --------------------------------------------------------

func TestAlertLifecycle(t *testing.T) {
	srv := newServer(t)

	_, out := postReading(t, srv, 5.0)
	if out.Alert == nil {
		t.Fatal("expected an opened alert")
	}
	id := out.Alert.ID

	resp, body := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/alerts/%s/read", srv.URL, id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status: got %d (body %s)", resp.StatusCode, body)
	}
	var a sensor.Alert
	if err := json.Unmarshal(body, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.State != sensor.AlertRead {
		t.Errorf("state: got %v, want read", a.State)
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/alerts/%s/resolve", srv.URL, id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status: got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.State != sensor.AlertResolved || a.ResolvedAt == nil {
		t.Errorf("resolved alert: got %+v", a)
	}
}

func TestAlerts_UnknownID(t *testing.T) {
	srv := newServer(t)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/v1/alerts/nope/read")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestAlerts_UnknownAction(t *testing.T) {
	srv := newServer(t)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/v1/alerts/a1/archive")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

// --- health -----------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var out HealthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "ok" {
		t.Errorf("status field: got %q, want ok", out.Status)
	}
	if out.Sensors != 1 {
		t.Errorf("sensors: got %d, want 1", out.Sensors)
	}
}
