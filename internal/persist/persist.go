package persist

import (
	"context"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

// AlertStore persists alerts and their lifecycle transitions.
// Implementations must be safe for concurrent use.
type AlertStore interface {
	// InsertAlert stores a newly opened alert. An error means the anomaly is
	// not handled: the caller must not broadcast or record the alert.
	InsertAlert(ctx context.Context, a *sensor.Alert) error

	// UpdateAlert stores a state transition (read / resolved) of an
	// existing alert.
	UpdateAlert(ctx context.Context, a *sensor.Alert) error
}

// RecommendationStore persists one generated recommendation batch.
type RecommendationStore interface {
	InsertRecommendations(ctx context.Context, recs []sensor.Recommendation) error
}

// Discard is an AlertStore and RecommendationStore that accepts and drops
// everything. Used when persistence is disabled.
type Discard struct{}

func (Discard) InsertAlert(context.Context, *sensor.Alert) error  { return nil }
func (Discard) UpdateAlert(context.Context, *sensor.Alert) error  { return nil }
func (Discard) InsertRecommendations(context.Context, []sensor.Recommendation) error {
	return nil
}
