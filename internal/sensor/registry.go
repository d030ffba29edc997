package sensor

import "sync"

// Registry is a thread-safe lookup of sensor metadata, keyed by sensor ID.
// The surrounding system owns sensor definitions (configuration, CRUD layer);
// the core only reads from the registry. Replace swaps the whole set, which
// is how config hot-reload applies new thresholds.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]Bounds
}

// NewRegistry creates a Registry holding the given sensor definitions.
func NewRegistry(sensors ...Bounds) *Registry {
	r := &Registry{sensors: make(map[string]Bounds, len(sensors))}
	for _, b := range sensors {
		r.sensors[b.SensorID] = b
	}
	return r
}

// Bounds returns the metadata for sensorID and whether it is registered.
func (r *Registry) Bounds(sensorID string) (Bounds, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.sensors[sensorID]
	return b, ok
}

// Replace atomically swaps the full sensor set.
func (r *Registry) Replace(sensors []Bounds) {
	next := make(map[string]Bounds, len(sensors))
	for _, b := range sensors {
		next[b.SensorID] = b
	}
	r.mu.Lock()
	r.sensors = next
	r.mu.Unlock()
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}
