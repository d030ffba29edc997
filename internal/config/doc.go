// Package config loads and watches the hydrocore YAML configuration.
//
// Load parses the file, fills defaults, and validates. Watch re-loads the
// file on change and hands the new configuration to the caller; a reload
// that fails validation keeps the previous configuration active.
package config
