package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydrocore/hydrocore/internal/persist"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/threshold"
)

// DefaultSuppressionWindow is how long an unresolved alert blocks duplicates
// for the same (farm, sensor, parameter class) key.
const DefaultSuppressionWindow = time.Hour

// key identifies one alert deduplication scope.
type key struct {
	farmID   string
	sensorID string
	class    sensor.ParameterClass
}

// entry serializes anomaly handling for one key and remembers the most
// recently opened alert for the suppression check.
type entry struct {
	mu   sync.Mutex
	last *sensor.Alert
}

// Manager owns alert state. All alerts pass through its per-key window check
// before they exist; lifecycle transitions go through MarkRead and Resolve.
type Manager struct {
	store persist.AlertStore

	winMu  sync.RWMutex
	window time.Duration

	mu   sync.Mutex
	keys map[key]*entry

	idMu sync.RWMutex
	byID map[string]*sensor.Alert

	now func() time.Time // injectable for deterministic tests
}

// NewManager creates a Manager persisting through store, with the given
// suppression window (<= 0 selects DefaultSuppressionWindow).
func NewManager(store persist.AlertStore, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	return &Manager{
		store:  store,
		window: window,
		keys:   make(map[key]*entry),
		byID:   make(map[string]*sensor.Alert),
		now:    time.Now,
	}
}

// SetSuppressionWindow swaps the suppression window at runtime (config reload).
func (m *Manager) SetSuppressionWindow(d time.Duration) {
	if d <= 0 {
		d = DefaultSuppressionWindow
	}
	m.winMu.Lock()
	m.window = d
	m.winMu.Unlock()
}

func (m *Manager) suppressionWindow() time.Duration {
	m.winMu.RLock()
	defer m.winMu.RUnlock()
	return m.window
}

// OnMeasurement evaluates one measurement against its bounds and, when
// anomalous, decides atomically per key whether a new alert opens.
//
// The returned alert is non-nil only when a new alert was opened and
// persisted; a suppressed anomaly returns (verdict, nil, nil). A persistence
// failure returns the verdict and a *sensor.PersistenceError, and leaves the
// key untouched so a retried measurement can open the alert.
func (m *Manager) OnMeasurement(ctx context.Context, meas sensor.Measurement, b sensor.Bounds) (threshold.Verdict, *sensor.Alert, error) {
	v := threshold.Evaluate(meas, b)
	if !v.Anomalous() {
		return v, nil, nil
	}

	e := m.entry(key{farmID: meas.FarmID, sensorID: meas.SensorID, class: meas.Class})
	e.mu.Lock()
	defer e.mu.Unlock()

	now := m.now()
	// Alert state mutates under idMu (MarkRead / Resolve), so the window
	// check reads it under the same lock.
	m.idMu.RLock()
	suppressed := e.last != nil && e.last.State != sensor.AlertResolved &&
		now.Sub(e.last.CreatedAt) < m.suppressionWindow()
	m.idMu.RUnlock()
	if suppressed {
		// Duplicate within the window: deliberate no-op, not an error.
		return v, nil, nil
	}

	a := m.buildAlert(meas, b, v, now)
	if err := m.store.InsertAlert(ctx, a); err != nil {
		return v, nil, &sensor.PersistenceError{Op: "alert", Err: err}
	}

	e.last = a
	m.idMu.Lock()
	m.byID[a.ID] = a
	m.idMu.Unlock()
	return v, a, nil
}

// MarkRead transitions an open alert to read. Marking an already read or
// resolved alert is a forward no-op that still returns the alert.
//
// The transition is persisted before it is committed to memory: a failed
// update leaves the alert open so a retry persists again.
func (m *Manager) MarkRead(ctx context.Context, id string) (*sensor.Alert, error) {
	m.idMu.RLock()
	a, ok := m.byID[id]
	var cp sensor.Alert
	if ok {
		cp = *a
	}
	m.idMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, sensor.ErrNotFound)
	}
	if cp.State != sensor.AlertOpen {
		return &cp, nil
	}

	cp.State = sensor.AlertRead
	if err := m.store.UpdateAlert(ctx, &cp); err != nil {
		return nil, &sensor.PersistenceError{Op: "alert update", Err: err}
	}

	m.idMu.Lock()
	// A concurrent Resolve may have advanced the state; never step it back.
	if a.State == sensor.AlertOpen {
		a.State = sensor.AlertRead
	}
	cp = *a
	m.idMu.Unlock()
	return &cp, nil
}

// Resolve transitions an alert to resolved, stamping ResolvedAt and forcing
// the read state (resolving implies read). Resolving twice is idempotent.
//
// As with MarkRead, memory only changes after the store accepts the update.
func (m *Manager) Resolve(ctx context.Context, id string) (*sensor.Alert, error) {
	m.idMu.RLock()
	a, ok := m.byID[id]
	var cp sensor.Alert
	if ok {
		cp = *a
	}
	m.idMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, sensor.ErrNotFound)
	}
	if cp.State == sensor.AlertResolved {
		return &cp, nil
	}

	resolved := m.now()
	cp.State = sensor.AlertResolved
	cp.ResolvedAt = &resolved
	if err := m.store.UpdateAlert(ctx, &cp); err != nil {
		return nil, &sensor.PersistenceError{Op: "alert update", Err: err}
	}

	m.idMu.Lock()
	if a.State != sensor.AlertResolved {
		a.State = sensor.AlertResolved
		a.ResolvedAt = &resolved
	}
	cp = *a
	m.idMu.Unlock()
	return &cp, nil
}

func (m *Manager) entry(k key) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[k]
	if !ok {
		e = &entry{}
		m.keys[k] = e
	}
	return e
}

// buildAlert constructs the alert record, including the human-readable title
// and message naming the sensor, observed value, unit, and violated threshold.
func (m *Manager) buildAlert(meas sensor.Measurement, b sensor.Bounds, v threshold.Verdict, now time.Time) *sensor.Alert {
	name := b.Name
	if name == "" {
		name = meas.SensorID
	}
	unit := b.Unit
	if unit == "" {
		unit = meas.Unit
	}

	var msg string
	switch v.Kind {
	case threshold.BelowMin:
		msg = fmt.Sprintf("%s reading (%v %s) is below minimum threshold (%v %s)",
			name, meas.Value, unit, v.Limit, unit)
	case threshold.AboveMax:
		msg = fmt.Sprintf("%s reading (%v %s) is above maximum threshold (%v %s)",
			name, meas.Value, unit, v.Limit, unit)
	}

	return &sensor.Alert{
		ID:        uuid.NewString(),
		FarmID:    meas.FarmID,
		SensorID:  meas.SensorID,
		Class:     meas.Class,
		Title:     fmt.Sprintf("%s Alert - %s", classTitle(meas.Class), name),
		Message:   msg,
		Severity:  v.Severity(meas.Value),
		State:     sensor.AlertOpen,
		CreatedAt: now,
	}
}

// classTitle renders a parameter class as a title, e.g. "dissolved_oxygen"
// becomes "Dissolved Oxygen".
func classTitle(c sensor.ParameterClass) string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
