package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/httputil"
	"github.com/escapeSeq/spacecore-orbits/internal/logging"
	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/propagation"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
)

type handlers struct {
	engine     *engine.Engine
	archive    *tle.Archive
	limiter    *httputil.Limiter
	trustProxy bool
}

type satelliteList struct {
	Count      int                `json:"count"`
	Satellites []engine.Satellite `json:"satellites"`
}

type coverageToggle struct {
	Show *bool `json:"show"`
}

type coverageToggleResponse struct {
	ID           int  `json:"norad_id"`
	ShowCoverage bool `json:"show_coverage"`
}

type uploadResponse struct {
	Source         string    `json:"source"`
	SatelliteCount int       `json:"satellite_count"`
	EpochMin       time.Time `json:"epoch_min"`
	EpochMax       time.Time `json:"epoch_max"`
	Archived       bool      `json:"archived"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, propagation.ErrNoCatalog):
		writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "satellite not found")
	case r.Context().Err() != nil:
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logging.FromContext(r.Context()).Error("request failed", "component", "api", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// noradID parses the {norad_id} path value.
func noradID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryTime parses the optional t query parameter (RFC 3339). An absent
// value means now.
func queryTime(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("t")
	if v == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, v)
}

// GET /api/v1/satellites
func (h *handlers) listSatellites(w http.ResponseWriter, r *http.Request) {
	sats, err := h.engine.Satellites()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, satelliteList{Count: len(sats), Satellites: sats})
}

// GET /api/v1/satellites/{norad_id}
func (h *handlers) getSatellite(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid norad_id")
		return
	}
	sat, err := h.engine.Satellite(id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sat)
}

// GET /api/v1/satellites/{norad_id}/state?t=2024-01-01T00:00:00Z
func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid norad_id")
		return
	}
	at, err := queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t parameter, must be RFC 3339")
		return
	}
	state, err := h.engine.State(id, at)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// POST /api/v1/satellites/{norad_id}/coverage {"show": true}
func (h *handlers) setCoverage(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid norad_id")
		return
	}

	var body coverageToggle
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil || body.Show == nil {
		writeError(w, http.StatusBadRequest, `body must be {"show": true|false}`)
		return
	}

	if err := h.engine.SetShowCoverage(id, *body.Show); err != nil {
		writeEngineError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("coverage override set",
		"component", "api",
		"norad_id", id,
		"show_coverage", *body.Show,
	)
	writeJSON(w, http.StatusOK, coverageToggleResponse{ID: id, ShowCoverage: *body.Show})
}

// GET /api/v1/coverage?t=2024-01-01T00:00:00Z&min_elevation=10
func (h *handlers) getCoverage(w http.ResponseWriter, r *http.Request) {
	at, err := queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t parameter, must be RFC 3339")
		return
	}

	minEl := h.engine.DefaultMinElevation()
	if v := r.URL.Query().Get("min_elevation"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 90 {
			writeError(w, http.StatusBadRequest, "invalid min_elevation parameter, must be 0-90")
			return
		}
		minEl = f
	}

	ip := httputil.ClientIP(r, h.trustProxy)
	if !h.limiter.Acquire(ip) {
		metrics.IncRejected("rate_limit")
		logging.FromContext(r.Context()).Warn("coverage rate limit exceeded",
			"component", "api",
			"remote_ip", ip,
			"current_count", h.limiter.Count(ip),
		)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many concurrent coverage requests")
		return
	}
	defer h.limiter.Release(ip)

	snap, err := h.engine.Snapshot(r.Context(), at, minEl)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /api/v1/tle with raw TLE text as the body.
func (h *handlers) uploadCatalog(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, tle.MaxCatalogBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "catalog too large")
			return
		}
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	cat, err := h.engine.LoadCatalog(bytes.NewReader(data), "upload")
	if err != nil {
		if errors.Is(err, engine.ErrEmptyCatalog) {
			writeError(w, http.StatusUnprocessableEntity, "no valid TLE entries")
			return
		}
		writeEngineError(w, r, err)
		return
	}

	archived := false
	if h.archive != nil {
		if err := h.archive.Save(data, cat.LoadedAt); err != nil {
			logger.Warn("archiving uploaded catalog failed", "component", "api", "error", err)
		} else {
			archived = true
		}
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Source:         cat.Source,
		SatelliteCount: len(cat.Satellites),
		EpochMin:       cat.EpochRange.Min,
		EpochMax:       cat.EpochRange.Max,
		Archived:       archived,
	})
}
