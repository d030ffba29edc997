package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

// Defaults for the measurement window.
const (
	DefaultTTL       = 24 * time.Hour
	DefaultMaxPerKey = 500
)

type key struct {
	farmID string
	class  sensor.ParameterClass
}

// Window is a thread-safe bounded buffer of recent measurements, keyed by
// (farm, parameter class). A background goroutine (Run) periodically drops
// measurements older than the TTL.
type Window struct {
	mu        sync.RWMutex
	data      map[key][]sensor.Measurement
	ttl       time.Duration
	maxPerKey int
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Window. Non-positive ttl or maxPerKey select the defaults.
func New(ttl time.Duration, maxPerKey int) *Window {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxPerKey <= 0 {
		maxPerKey = DefaultMaxPerKey
	}
	return &Window{
		data:      make(map[key][]sensor.Measurement),
		ttl:       ttl,
		maxPerKey: maxPerKey,
		now:       time.Now,
	}
}

// Add appends a measurement to its key's buffer, dropping the oldest entry
// when the buffer is full.
func (w *Window) Add(m sensor.Measurement) {
	k := key{farmID: m.FarmID, class: m.Class}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.data[k]
	if len(buf) >= w.maxPerKey {
		buf = buf[1:]
	}
	w.data[k] = append(buf, m)
}

// Recent returns the measurements for one farm observed within the given
// window, grouped by parameter class and ordered most-recent-first. The
// result is a copy; callers may mutate it freely.
func (w *Window) Recent(farmID string, window time.Duration) map[sensor.ParameterClass][]sensor.Measurement {
	cutoff := w.now().Add(-window)

	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[sensor.ParameterClass][]sensor.Measurement)
	for k, buf := range w.data {
		if k.farmID != farmID {
			continue
		}
		var recent []sensor.Measurement
		for _, m := range buf {
			if m.ObservedAt.After(cutoff) {
				recent = append(recent, m)
			}
		}
		if len(recent) == 0 {
			continue
		}
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].ObservedAt.After(recent[j].ObservedAt)
		})
		out[k.class] = recent
	}
	return out
}

// Latest returns the most recent measurement per parameter class for one
// farm, the snapshot a late-joining subscriber starts from.
func (w *Window) Latest(farmID string) []sensor.Measurement {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []sensor.Measurement
	for k, buf := range w.data {
		if k.farmID != farmID || len(buf) == 0 {
			continue
		}
		latest := buf[0]
		for _, m := range buf[1:] {
			if m.ObservedAt.After(latest.ObservedAt) {
				latest = m
			}
		}
		out = append(out, latest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

// Farms returns the farm IDs currently holding any measurements.
func (w *Window) Farms() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range w.data {
		seen[k.farmID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of buffered measurements.
func (w *Window) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var n int
	for _, buf := range w.data {
		n += len(buf)
	}
	return n
}

// Evict drops measurements observed before now minus TTL and returns how many
// were removed.
func (w *Window) Evict(now time.Time) int {
	cutoff := now.Add(-w.ttl)

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for k, buf := range w.data {
		kept := buf[:0]
		for _, m := range buf {
			if m.ObservedAt.After(cutoff) {
				kept = append(kept, m)
			}
		}
		removed += len(buf) - len(kept)
		if len(kept) == 0 {
			delete(w.data, k)
			continue
		}
		w.data[k] = kept
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval, bounded to [1s, 1m], and blocks until ctx is cancelled.
func (w *Window) Run(ctx context.Context) {
	interval := w.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := w.Evict(now); n > 0 {
				slog.Debug("store: evicted stale measurements", "count", n)
			}
		}
	}
}
