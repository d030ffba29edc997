package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hydrocore/hydrocore/internal/ingest"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/ws"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	pipeline *ingest.Pipeline
	hub      *ws.Hub
	registry *sensor.Registry
	mux      *http.ServeMux
	started  time.Time
}

// New creates a Handler wired to the pipeline and registers all routes.
func New(p *ingest.Pipeline, hub *ws.Hub, registry *sensor.Registry) http.Handler {
	h := &Handler{
		pipeline: p,
		hub:      hub,
		registry: registry,
		mux:      http.NewServeMux(),
		started:  time.Now(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/readings", h.readings)
	h.mux.HandleFunc("/api/v1/farms/", h.farms)   // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/alerts/", h.alerts) // subtree — extracts {id}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — liveness plus basic gauges.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Sensors:       h.registry.Len(),
		WSClients:     h.hub.Count(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// readings handles POST /api/v1/readings — one sensor reading through the
// full evaluation path.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var m sensor.Measurement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		jsonErr(w, http.StatusBadRequest, "malformed reading: "+err.Error())
		return
	}
	if m.ObservedAt.IsZero() {
		m.ObservedAt = time.Now().UTC()
	}

	v, alert, err := h.pipeline.Record(r.Context(), m)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	status := http.StatusOK
	if alert != nil {
		status = http.StatusCreated
	}
	jsonResp(w, status, ReadingResponse{Status: v.Kind.String(), Alert: alert})
}

// farms handles POST /api/v1/farms/{id}/recommendations.
func (h *Handler) farms(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/farms/")
	farmID, action, ok := strings.Cut(rest, "/")
	if !ok || farmID == "" || action != "recommendations" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lookback, err := lookbackParam(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.pipeline.Recommend(r.Context(), farmID, lookback)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if recs == nil {
		recs = []sensor.Recommendation{}
	}
	jsonResp(w, http.StatusOK, RecommendationsResponse{FarmID: farmID, Recommendations: recs})
}

// alerts handles PUT /api/v1/alerts/{id}/read and
// PUT /api/v1/alerts/{id}/resolve.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPut {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		a   *sensor.Alert
		err error
	)
	switch action {
	case "read":
		a, err = h.pipeline.MarkRead(r.Context(), id)
	case "resolve":
		a, err = h.pipeline.Resolve(r.Context(), id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, a)
}

// --- helpers ----------------------------------------------------------------

// lookbackParam parses the optional ?lookback=24h query parameter.
// Zero means the pipeline default.
func lookbackParam(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("lookback")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid lookback duration")
	}
	return d, nil
}

// writeDomainErr maps domain errors to HTTP status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	var verr *sensor.ValidationError
	var perr *sensor.PersistenceError
	switch {
	case errors.As(err, &verr):
		jsonErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sensor.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.As(err, &perr):
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
