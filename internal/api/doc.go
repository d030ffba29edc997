// Package api implements the HTTP surface of the monitoring core.
//
// The API is deliberately thin: it decodes requests, calls into the ingest
// pipeline, and encodes results. Farm, sensor, and user management belong to
// the surrounding platform and are not served here.
package api
