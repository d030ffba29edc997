// Package scrape pulls sensor readings from Prometheus text exposition
// endpoints. Field gateways that expose their sensor values as Prometheus
// gauges are polled on an interval, mapped to registered sensors, and fed
// into the ingest pipeline as ordinary readings.
//
// Each source names an endpoint and a metric-to-sensor mapping; a metric
// missing from a scrape is skipped, and a failed scrape is logged and
// counted but never stops the runner.
package scrape
