package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hydrocore/hydrocore/internal/recommend"
	"github.com/hydrocore/hydrocore/internal/scrape"
	"github.com/hydrocore/hydrocore/internal/sensor"
)

// Default values for the configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultWindowTTL         = 24 * time.Hour
	DefaultWindowMaxPerKey   = 500
	DefaultSuppressionWindow = time.Hour
	DefaultScrapeInterval    = 30 * time.Second
	DefaultMongoDatabase     = "hydrocore"
)

// Config is the full hydrocore configuration parsed from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Window   WindowConfig   `yaml:"window"`
	Alerting AlertingConfig `yaml:"alerting"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Scrape   ScrapeConfig   `yaml:"scrape"`

	// Sensors is the registered sensor set with alerting thresholds.
	Sensors []SensorConfig `yaml:"sensors"`

	// Ranges overrides the built-in optimal ranges per parameter class.
	Ranges map[string]RangeConfig `yaml:"ranges"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming clients.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// WindowConfig controls in-memory measurement retention.
type WindowConfig struct {
	// TTL is how long a measurement stays available for recommendation runs.
	// Default: 24h.
	TTL time.Duration `yaml:"ttl"`

	// MaxPerKey caps how many measurements one (farm, class) series keeps.
	// Default: 500.
	MaxPerKey int `yaml:"max_per_key"`
}

// AlertingConfig controls alert deduplication.
type AlertingConfig struct {
	// SuppressionWindow is how long an unresolved alert blocks duplicates for
	// the same (farm, sensor, class). Default: 1h.
	SuppressionWindow time.Duration `yaml:"suppression_window"`
}

// MongoConfig controls alert and recommendation persistence.
type MongoConfig struct {
	// Enabled switches persistence on. When false, alerts and
	// recommendations live only in memory and on the wire.
	Enabled bool `yaml:"enabled"`

	// URIEnv is the name of the environment variable that holds the
	// connection URI.
	URIEnv string `yaml:"uri_env"`

	// Database is the database name. Default: "hydrocore".
	Database string `yaml:"database"`
}

// URI returns the connection URI resolved from the environment.
func (m MongoConfig) URI() string {
	if m.URIEnv == "" {
		return ""
	}
	return os.Getenv(m.URIEnv)
}

// ScrapeConfig controls the sensor-gateway pull adapter.
type ScrapeConfig struct {
	// Interval is the default poll period for sources that do not set their
	// own. Default: 30s.
	Interval time.Duration `yaml:"interval"`

	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one Prometheus exposition endpoint to poll.
type SourceConfig struct {
	ID       string        `yaml:"id"`
	Endpoint string        `yaml:"endpoint"`
	Interval time.Duration `yaml:"interval"`

	// Metrics maps exposition metric names to registered sensor IDs.
	Metrics map[string]string `yaml:"metrics"`
}

// SensorConfig is one registered sensor with its optional thresholds.
type SensorConfig struct {
	SensorID string   `yaml:"sensor_id"`
	FarmID   string   `yaml:"farm_id"`
	Name     string   `yaml:"name"`
	Class    string   `yaml:"class"`
	Unit     string   `yaml:"unit"`
	Min      *float64 `yaml:"min_threshold"`
	Max      *float64 `yaml:"max_threshold"`
}

// RangeConfig overrides one class's optimal range.
type RangeConfig struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Ideal float64 `yaml:"ideal"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Window: WindowConfig{
			TTL:       DefaultWindowTTL,
			MaxPerKey: DefaultWindowMaxPerKey,
		},
		Alerting: AlertingConfig{
			SuppressionWindow: DefaultSuppressionWindow,
		},
		Mongo: MongoConfig{
			Database: DefaultMongoDatabase,
		},
		Scrape: ScrapeConfig{
			Interval: DefaultScrapeInterval,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Window.TTL <= 0 {
		return fmt.Errorf("window.ttl must be positive")
	}
	if cfg.Window.MaxPerKey <= 0 {
		return fmt.Errorf("window.max_per_key must be positive")
	}
	if cfg.Alerting.SuppressionWindow < 0 {
		return fmt.Errorf("alerting.suppression_window must not be negative")
	}
	if cfg.Mongo.Enabled && cfg.Mongo.URIEnv == "" {
		return fmt.Errorf("mongo.uri_env is required when mongo is enabled")
	}

	seen := make(map[string]bool, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		if s.SensorID == "" {
			return fmt.Errorf("sensors[%d]: sensor_id is required", i)
		}
		if s.FarmID == "" {
			return fmt.Errorf("sensors[%d] (%s): farm_id is required", i, s.SensorID)
		}
		if seen[s.SensorID] {
			return fmt.Errorf("sensors: duplicate sensor_id %q", s.SensorID)
		}
		seen[s.SensorID] = true
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return fmt.Errorf("sensor %q: min_threshold %v exceeds max_threshold %v",
				s.SensorID, *s.Min, *s.Max)
		}
	}

	for class, r := range cfg.Ranges {
		if r.Min >= r.Max {
			return fmt.Errorf("ranges.%s: min %v must be below max %v", class, r.Min, r.Max)
		}
		if r.Ideal < r.Min || r.Ideal > r.Max {
			return fmt.Errorf("ranges.%s: ideal %v outside [%v, %v]", class, r.Ideal, r.Min, r.Max)
		}
	}

	for i, src := range cfg.Scrape.Sources {
		if src.ID == "" {
			return fmt.Errorf("scrape.sources[%d]: id is required", i)
		}
		if src.Endpoint == "" {
			return fmt.Errorf("scrape.sources[%d] (%s): endpoint is required", i, src.ID)
		}
	}
	return nil
}

// --- conversions ------------------------------------------------------------

// SensorBounds converts the configured sensor set into registry entries.
func (c *Config) SensorBounds() []sensor.Bounds {
	out := make([]sensor.Bounds, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		out = append(out, sensor.Bounds{
			SensorID: s.SensorID,
			FarmID:   s.FarmID,
			Name:     s.Name,
			Class:    sensor.ParameterClass(s.Class),
			Unit:     s.Unit,
			Min:      s.Min,
			Max:      s.Max,
		})
	}
	return out
}

// RangeOverrides converts the ranges section into the recommendation
// engine's override table.
func (c *Config) RangeOverrides() map[sensor.ParameterClass]recommend.Range {
	out := make(map[sensor.ParameterClass]recommend.Range, len(c.Ranges))
	for class, r := range c.Ranges {
		out[sensor.ParameterClass(class)] = recommend.Range{
			Min:   r.Min,
			Max:   r.Max,
			Ideal: r.Ideal,
		}
	}
	return out
}

// ScrapeSources converts the scrape section into runner sources.
func (c *Config) ScrapeSources() []scrape.Source {
	out := make([]scrape.Source, 0, len(c.Scrape.Sources))
	for _, s := range c.Scrape.Sources {
		out = append(out, scrape.Source{
			ID:       s.ID,
			Endpoint: s.Endpoint,
			Interval: s.Interval,
			Metrics:  s.Metrics,
		})
	}
	return out
}
