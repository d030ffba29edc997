// Package sensor defines the shared domain types for the monitoring core:
// measurements, sensor bounds, alerts, recommendations, and the error
// taxonomy used across packages. These are the canonical in-memory
// representations, separate from any wire or storage format.
package sensor
