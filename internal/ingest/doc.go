// Package ingest wires the monitoring core together. The Pipeline receives
// validated sensor readings, records them in the in-memory window, runs
// threshold evaluation and alert deduplication, and broadcasts the results
// over the realtime hub. It also drives on-demand recommendation runs.
//
// The Pipeline itself holds no domain logic; every rule lives in the package
// it belongs to (threshold, alerting, recommend). What it owns is ordering:
// a reading is visible in the window before its alert is published, so a
// subscriber that reacts to an alert can always query the reading behind it.
package ingest
