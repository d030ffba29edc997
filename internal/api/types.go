package api

import "github.com/hydrocore/hydrocore/internal/sensor"

// ReadingResponse is the payload for POST /api/v1/readings.
type ReadingResponse struct {
	Status string `json:"status"` // "normal", "below_min", "above_max"

	// Alert is present only when this reading opened a new alert.
	Alert *sensor.Alert `json:"alert,omitempty"`
}

// RecommendationsResponse is the payload for
// POST /api/v1/farms/{id}/recommendations.
type RecommendationsResponse struct {
	FarmID          string                  `json:"farm_id"`
	Recommendations []sensor.Recommendation `json:"recommendations"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Sensors       int    `json:"sensors"`
	WSClients     int    `json:"ws_clients"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
