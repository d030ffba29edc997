package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

// writeConfig writes content to a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
server:
  http_port: 9090
  auth:
    mode: apikey
    key_env: HYDRO_TEST_KEY
    header: x-hydro-key
window:
  ttl: 12h
  max_per_key: 200
alerting:
  suppression_window: 30m
mongo:
  enabled: true
  uri_env: HYDRO_TEST_MONGO
  database: greenhouse
scrape:
  interval: 15s
  sources:
    - id: gw-1
      endpoint: http://gateway-1:9100/metrics
      metrics:
        greenhouse_ph: ph-1
sensors:
  - sensor_id: ph-1
    farm_id: farm-1
    name: pH Sensor
    class: ph
    unit: pH
    min_threshold: 5.5
    max_threshold: 6.5
  - sensor_id: temp-1
    farm_id: farm-1
    name: Water Temp
    class: temperature
    unit: "°C"
    max_threshold: 26
ranges:
  ph:
    min: 5.8
    max: 6.2
    ideal: 6.0
`

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("http_port: got %d, want 9090", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.Mode != "apikey" || cfg.Server.Auth.EffectiveHeader() != "x-hydro-key" {
		t.Errorf("auth: got %+v", cfg.Server.Auth)
	}
	if cfg.Window.TTL != 12*time.Hour || cfg.Window.MaxPerKey != 200 {
		t.Errorf("window: got %+v", cfg.Window)
	}
	if cfg.Alerting.SuppressionWindow != 30*time.Minute {
		t.Errorf("suppression_window: got %v", cfg.Alerting.SuppressionWindow)
	}
	if !cfg.Mongo.Enabled || cfg.Mongo.Database != "greenhouse" {
		t.Errorf("mongo: got %+v", cfg.Mongo)
	}
	if cfg.Scrape.Interval != 15*time.Second || len(cfg.Scrape.Sources) != 1 {
		t.Errorf("scrape: got %+v", cfg.Scrape)
	}
	if len(cfg.Sensors) != 2 {
		t.Fatalf("sensors: got %d, want 2", len(cfg.Sensors))
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sensors: []\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port default: got %d", cfg.Server.HTTPPort)
	}
	if cfg.Window.TTL != DefaultWindowTTL || cfg.Window.MaxPerKey != DefaultWindowMaxPerKey {
		t.Errorf("window defaults: got %+v", cfg.Window)
	}
	if cfg.Alerting.SuppressionWindow != DefaultSuppressionWindow {
		t.Errorf("suppression default: got %v", cfg.Alerting.SuppressionWindow)
	}
	if cfg.Scrape.Interval != DefaultScrapeInterval {
		t.Errorf("scrape interval default: got %v", cfg.Scrape.Interval)
	}
	if cfg.Mongo.Database != DefaultMongoDatabase {
		t.Errorf("mongo database default: got %q", cfg.Mongo.Database)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  http_port: 70000\n"},
		{"bad auth mode", "server:\n  auth:\n    mode: oauth\n"},
		{"zero window ttl", "window:\n  ttl: 0s\n"},
		{"mongo without uri_env", "mongo:\n  enabled: true\n"},
		{"sensor without id", "sensors:\n  - farm_id: farm-1\n"},
		{"sensor without farm", "sensors:\n  - sensor_id: ph-1\n"},
		{"duplicate sensor", "sensors:\n  - {sensor_id: ph-1, farm_id: f1}\n  - {sensor_id: ph-1, farm_id: f1}\n"},
		{"min above max", "sensors:\n  - {sensor_id: ph-1, farm_id: f1, min_threshold: 7, max_threshold: 6}\n"},
		{"inverted range", "ranges:\n  ph: {min: 7, max: 6, ideal: 6.5}\n"},
		{"ideal outside range", "ranges:\n  ph: {min: 5, max: 6, ideal: 7}\n"},
		{"source without endpoint", "scrape:\n  sources:\n    - id: gw-1\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Errorf("Load should reject %q", tt.name)
			}
		})
	}
}

func TestAuthKey_FromEnvironment(t *testing.T) {
	t.Setenv("HYDRO_TEST_KEY", "s3cret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "HYDRO_TEST_KEY"}
	if got := a.Key(); got != "s3cret" {
		t.Errorf("Key: got %q, want s3cret", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key without key_env: got %q, want empty", got)
	}
}

func TestConversions(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bounds := cfg.SensorBounds()
	if len(bounds) != 2 {
		t.Fatalf("bounds: got %d, want 2", len(bounds))
	}
	ph := bounds[0]
	if ph.SensorID != "ph-1" || ph.Class != sensor.ClassPH || *ph.Min != 5.5 || *ph.Max != 6.5 {
		t.Errorf("ph bounds: got %+v", ph)
	}
	if bounds[1].Min != nil {
		t.Errorf("temp min: got %v, want nil (not configured)", *bounds[1].Min)
	}

	ranges := cfg.RangeOverrides()
	r, ok := ranges[sensor.ClassPH]
	if !ok || r.Min != 5.8 || r.Max != 6.2 || r.Ideal != 6.0 {
		t.Errorf("ph range override: got %+v", r)
	}

	sources := cfg.ScrapeSources()
	if len(sources) != 1 || sources[0].Metrics["greenhouse_ph"] != "ph-1" {
		t.Errorf("scrape sources: got %+v", sources)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to attach before rewriting.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("server:\n  http_port: 9999\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.HTTPPort != 9999 {
			t.Errorf("reloaded port: got %d, want 9999", cfg.Server.HTTPPort)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	<-done
}

func TestWatch_TruncateThenWriteAppliesOnlyFinalContent(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	time.Sleep(50 * time.Millisecond)

	// Mimic a non-atomic writer: truncate first, pause mid-write, then write
	// the real content. The empty intermediate state must never be applied.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("truncate config: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := f.WriteString("server:\n  http_port: 9999\n"); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.HTTPPort != 9999 {
			t.Fatalf("applied port: got %d, want 9999 (partial write leaked through)", cfg.Server.HTTPPort)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// No second config (the truncated intermediate) may arrive afterwards.
	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected extra reload: %+v", cfg.Server)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("server: [\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config triggered onChange: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
		// No callback: the previous config stayed active.
	}
}
