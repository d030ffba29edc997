// Package alerting owns the alert lifecycle: it turns anomalous measurements
// into alerts, deduplicates repeats through a suppression window, and applies
// the mark-read / resolve transitions.
//
// Each (farm, sensor, parameter class) key is serialized independently, so
// concurrent anomalies on the same key cannot race the window check into a
// duplicate alert, while unrelated sensors proceed in parallel.
package alerting
