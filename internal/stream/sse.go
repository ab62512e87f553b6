// Package stream implements Server-Sent Events (SSE) streaming of coverage
// frames. Clients connect via GET /api/v1/stream/coverage and receive one
// frame per interval, with simulation time advancing at a chosen speed, so a
// renderer can animate caps and the union percentage without polling.
//
// SSE message format:
//
//	id: 1770350400\n
//	data: {"type":"coverage","t":"2026-02-06T04:00:00Z","union":{...},"sat":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","source":"...","satellite_count":2,"catalog_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without
// frames. Reconnecting clients receive a fresh metadata message and, unless
// they pass start, resume from the simulated time in Last-Event-ID.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/coverage"
	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/httputil"
	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/propagation"
	"github.com/escapeSeq/spacecore-orbits/internal/transform"
)

// maxStreamsTotal caps open streams across all clients.
const maxStreamsTotal = 1000

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP.
	KeepaliveInterval  time.Duration // Keep-alive ping interval.
	TrustProxy         bool          // Take the client IP from proxy headers.
}

// Handler manages SSE streaming connections.
type Handler struct {
	engine  *engine.Engine
	config  Config
	limiter *httputil.Limiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(eng *engine.Engine, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		engine:  eng,
		config:  config,
		limiter: httputil.NewLimiter(config.MaxConcurrentPerIP, maxStreamsTotal),
		logger:  logger,
	}
}

// params are the validated query parameters of one stream.
type params struct {
	interval time.Duration
	speed    float64
	minEl    float64
	start    time.Time
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}

// parseParams reads interval (seconds, 1-60), speed (0-3600, simulated
// seconds per wall second), min_elevation (degrees, 0-90) and start
// (RFC 3339). Without start, a reconnecting client's Last-Event-ID (the
// simulated Unix time of the last frame it saw) resumes the stream there.
func (h *Handler) parseParams(r *http.Request, now time.Time) (params, string) {
	q := r.URL.Query()
	p := params{
		interval: time.Second,
		speed:    1,
		minEl:    h.engine.DefaultMinElevation(),
		start:    now,
	}

	if v := q.Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return p, "invalid interval parameter, must be 1-60"
		}
		p.interval = time.Duration(n) * time.Second
	}
	if v := q.Get("speed"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 3600 {
			return p, "invalid speed parameter, must be 0-3600"
		}
		p.speed = f
	}
	if v := q.Get("min_elevation"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 90 {
			return p, "invalid min_elevation parameter, must be 0-90"
		}
		p.minEl = f
	}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, "invalid start parameter, must be RFC 3339"
		}
		p.start = t
	} else if v := r.Header.Get("Last-Event-ID"); v != "" {
		// A malformed id came from a different stream; start fresh.
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.start = time.Unix(sec, 0).UTC()
		}
	}
	return p, ""
}

// frameID is the event id of a frame at simulated time at.
func frameID(at time.Time) string {
	return strconv.FormatInt(at.Unix(), 10)
}

// simTime maps elapsed wall time to simulation time.
func simTime(start time.Time, elapsed time.Duration, speed float64) time.Time {
	return start.Add(time.Duration(float64(elapsed) * speed))
}

// HandleCoverage serves the SSE coverage stream.
// GET /api/v1/stream/coverage?interval=1&speed=60&min_elevation=10
func (h *Handler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	wallStart := time.Now()
	p, msg := h.parseParams(r, wallStart.UTC())
	if msg != "" {
		badRequest(w, msg)
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.Acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		metrics.IncRejected("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.Count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintln(w, `{"error":"too many concurrent streams"}`)
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_seconds", p.interval.Seconds(),
		"speed", p.speed,
	)

	defer func() {
		h.limiter.Release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(wallStart).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error":"streaming not supported"}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (retry)", "remote_ip", ip, "error", err)
		return
	}

	if cat := h.engine.Store().Get(); cat != nil {
		meta := metadataMessage{
			Type:           "metadata",
			Source:         cat.Source,
			SatelliteCount: len(cat.Satellites),
			CatalogAge:     int(time.Since(cat.LoadedAt).Seconds()),
			MinElevation:   p.minEl,
			Speed:          p.speed,
		}
		if err := c.sendJSON(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	ctx := r.Context()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	// send computes and writes one frame. It returns false when the
	// connection should close.
	send := func(now time.Time) bool {
		at := simTime(p.start, now.Sub(wallStart), p.speed)
		snap, err := h.engine.Snapshot(ctx, at, p.minEl)
		switch {
		case errors.Is(err, propagation.ErrNoCatalog):
			metrics.IncStreamErrors("no_catalog")
			return true
		case err != nil:
			if ctx.Err() == nil {
				metrics.IncStreamErrors("snapshot_error")
				h.logger.Warn("stream snapshot failed", "remote_ip", ip, "error", err)
			}
			return false
		}
		if err := c.sendEvent(frameID(snap.Time), buildFrameMessage(snap)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return false
		}
		keepaliveTicker.Reset(h.config.KeepaliveInterval)
		return true
	}

	if !send(wallStart) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			if !send(now) {
				return
			}

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildFrameMessage formats a snapshot into the SSE frame payload.
func buildFrameMessage(snap *engine.Snapshot) frameMessage {
	sats := make([]capPayload, len(snap.Satellites))
	for i, rec := range snap.Satellites {
		sats[i] = capPayload{
			ID:  rec.CatalogNumber,
			P:   rec.ScenePosition,
			Sub: rec.Subpoint,
			Psi: rec.CentralAngleDeg,
			Pct: rec.CoveragePercentage,
		}
	}
	return frameMessage{
		Type:  "coverage",
		T:     snap.Time.UTC().Format(time.RFC3339),
		Union: snap.Union,
		Sat:   sats,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type           string  `json:"type"`
	Source         string  `json:"source"`
	SatelliteCount int     `json:"satellite_count"`
	CatalogAge     int     `json:"catalog_age_seconds"`
	MinElevation   float64 `json:"min_elevation_deg"`
	Speed          float64 `json:"speed"`
}

type frameMessage struct {
	Type  string          `json:"type"`
	T     string          `json:"t"`
	Union coverage.Result `json:"union"`
	Sat   []capPayload    `json:"sat"`
}

type capPayload struct {
	ID  int                `json:"id"`
	P   [3]float64         `json:"p"` // scene coordinates
	Sub transform.Subpoint `json:"sub"`
	Psi float64            `json:"psi_deg"`
	Pct float64            `json:"pct"`
}
