package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitcov_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitcov_propagation_batch_duration_seconds",
			Help:    "Duration of one catalog propagation batch.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_propagations_total",
			Help: "Satellite propagations by Kepler solver outcome.",
		},
		[]string{"result"},
	)

	unionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitcov_union_duration_seconds",
			Help:    "Duration of one union coverage estimate.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	unionSurvivingCaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitcov_union_surviving_caps",
			Help: "Caps left after domination pruning in the last union estimate.",
		},
	)

	unionCoveragePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitcov_union_coverage_percent",
			Help: "Union coverage percentage from the last estimate.",
		},
	)

	gridCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_grid_cache_total",
			Help: "Equal-area grid cache lookups by result.",
		},
		[]string{"result"},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitcov_catalog_age_seconds",
			Help: "Seconds since the current catalog was loaded.",
		},
	)

	httpRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_http_rejected_total",
			Help: "Requests rejected before reaching a handler, by reason.",
		},
		[]string{"reason"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitcov_streams_active",
			Help: "Open coverage streams.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_stream_connections_total",
			Help: "Coverage stream connects and disconnects.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitcov_stream_messages_total",
			Help: "Messages sent on coverage streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitcov_stream_bytes_total",
			Help: "Bytes sent on coverage streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitcov_stream_errors_total",
			Help: "Coverage stream errors by reason.",
		},
		[]string{"reason"},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitcov_catalog_satellites",
			Help: "Number of satellites in the loaded catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(propagationDurationSeconds)
	prometheus.MustRegister(propagationsTotal)
	prometheus.MustRegister(unionDurationSeconds)
	prometheus.MustRegister(unionSurvivingCaps)
	prometheus.MustRegister(unionCoveragePercent)
	prometheus.MustRegister(gridCacheTotal)
	prometheus.MustRegister(catalogSatellites)
	prometheus.MustRegister(catalogAgeSeconds)
	prometheus.MustRegister(httpRejectedTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamConnectionsTotal)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one batch: its duration and how many
// satellites converged or hit the Kepler iteration cap.
func RecordPropagation(d time.Duration, converged, notConverged int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagationsTotal.WithLabelValues("converged").Add(float64(converged))
	propagationsTotal.WithLabelValues("not_converged").Add(float64(notConverged))
}

// RecordUnion records one union estimate.
func RecordUnion(d time.Duration, surviving int, percent float64) {
	unionDurationSeconds.Observe(d.Seconds())
	unionSurvivingCaps.Set(float64(surviving))
	unionCoveragePercent.Set(percent)
}

// IncGridCacheHits increments the grid cache hit counter.
func IncGridCacheHits() { gridCacheTotal.WithLabelValues("hit").Inc() }

// IncGridCacheMisses increments the grid cache miss counter.
func IncGridCacheMisses() { gridCacheTotal.WithLabelValues("miss").Inc() }

// SetCatalogSize sets the loaded catalog size gauge.
func SetCatalogSize(n int) { catalogSatellites.Set(float64(n)) }

// SetCatalogAge sets the catalog age gauge. A negative age means no
// catalog is loaded.
func SetCatalogAge(seconds float64) { catalogAgeSeconds.Set(seconds) }

// IncRejected counts a request rejected for reason, e.g. "rate_limit".
func IncRejected(reason string) { httpRejectedTotal.WithLabelValues(reason).Inc() }

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamConnections counts a stream "connect" or "disconnect".
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamMessages counts one sent stream message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds n sent bytes.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error, e.g. "send_error" or "no_catalog".
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var knownRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/v1/satellites": true,
	"/api/v1/coverage":   true,
	"/api/v1/tle":        true,

	"/api/v1/stream/coverage": true,
}

// normalizeRoute maps a request path to a bounded set of label values so
// per-satellite URLs and scanner noise do not explode label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/satellites/"); ok {
		id, tail, _ := strings.Cut(rest, "/")
		if isDigits(id) {
			switch tail {
			case "":
				return "/api/v1/satellites/{norad_id}"
			case "state":
				return "/api/v1/satellites/{norad_id}/state"
			case "coverage":
				return "/api/v1/satellites/{norad_id}/coverage"
			}
		}
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
