// Package health serves the liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/escapeSeq/spacecore-orbits/internal/tle"
)

// Readiness is the /readyz body.
type Readiness struct {
	Status     string  `json:"status"`
	Source     string  `json:"source,omitempty"`
	Satellites int     `json:"satellites"`
	AgeSeconds float64 `json:"catalog_age_seconds,omitempty"`
}

// Healthz returns 200 "ok\n" while the process is serving.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz reports whether a catalog is loaded: 200 with the catalog's
// source, size and age, or 503 while the store is empty.
func Readyz(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := Readiness{Status: "no_catalog"}
		if cat := store.Get(); cat == nil {
			status = http.StatusServiceUnavailable
		} else {
			body = Readiness{
				Status:     "ready",
				Source:     cat.Source,
				Satellites: len(cat.Satellites),
				AgeSeconds: store.AgeSeconds(),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
