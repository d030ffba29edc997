// Package metrics defines the process's own Prometheus instrumentation.
// All collectors register on a caller-supplied registry so tests can use
// an isolated one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the monitoring core updates.
type Metrics struct {
	ReadingsTotal      *prometheus.CounterVec
	ReadingsRejected   prometheus.Counter
	AnomaliesTotal     *prometheus.CounterVec
	AlertsOpened       *prometheus.CounterVec
	AlertsSuppressed   prometheus.Counter
	Recommendations    prometheus.Counter
	RecommendationRuns prometheus.Counter
	WSClients          prometheus.Gauge
	ScrapeErrors       *prometheus.CounterVec
}

// New registers all collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReadingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrocore_readings_total",
			Help: "Sensor readings accepted, by parameter class.",
		}, []string{"class"}),
		ReadingsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "hydrocore_readings_rejected_total",
			Help: "Sensor readings rejected by validation.",
		}),
		AnomaliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrocore_anomalies_total",
			Help: "Threshold breaches detected, by parameter class.",
		}, []string{"class"}),
		AlertsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrocore_alerts_opened_total",
			Help: "Alerts opened, by severity.",
		}, []string{"severity"}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hydrocore_alerts_suppressed_total",
			Help: "Anomalies suppressed by the deduplication window.",
		}),
		Recommendations: factory.NewCounter(prometheus.CounterOpts{
			Name: "hydrocore_recommendations_total",
			Help: "Recommendations generated.",
		}),
		RecommendationRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "hydrocore_recommendation_runs_total",
			Help: "Recommendation engine invocations.",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hydrocore_ws_clients",
			Help: "Currently connected WebSocket subscribers.",
		}),
		ScrapeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrocore_scrape_errors_total",
			Help: "Failed scrape cycles, by source.",
		}, []string{"source"}),
	}
}
