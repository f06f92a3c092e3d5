package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issspotter_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "issspotter_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "issspotter_prediction_duration_seconds",
			Help:    "Wall time of one pass prediction run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	passesFound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "issspotter_passes_found",
			Help: "Number of visible passes in the last successful prediction.",
		},
	)

	predictionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issspotter_prediction_errors_total",
			Help: "Failed prediction runs by error kind.",
		},
		[]string{"kind"},
	)

	elementsAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "issspotter_elements_age_seconds",
			Help: "Age of the orbital elements used by the last prediction.",
		},
	)

	elementsFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issspotter_elements_fetches_total",
			Help: "Orbital element fetch attempts by result.",
		},
		[]string{"result"},
	)

	sensorAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "issspotter_sensor_available",
			Help: "1 when the sensor currently reports a pass, 0 when unavailable.",
		},
	)

	mqttPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issspotter_mqtt_publishes_total",
			Help: "MQTT publishes by result.",
		},
		[]string{"result"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "issspotter_streams_active",
			Help: "Open sensor event streams.",
		},
	)

	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issspotter_stream_events_total",
			Help: "Sensor stream lifecycle events (connect, disconnect, rejected, send_error).",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(predictionDurationSeconds)
	prometheus.MustRegister(passesFound)
	prometheus.MustRegister(predictionErrorsTotal)
	prometheus.MustRegister(elementsAgeSeconds)
	prometheus.MustRegister(elementsFetchesTotal)
	prometheus.MustRegister(sensorAvailable)
	prometheus.MustRegister(mqttPublishesTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamEventsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePrediction records a successful prediction run.
func ObservePrediction(d time.Duration, passes int) {
	predictionDurationSeconds.Observe(d.Seconds())
	passesFound.Set(float64(passes))
}

// PredictionFailed counts a failed run under the given error kind.
func PredictionFailed(kind string) {
	predictionErrorsTotal.WithLabelValues(kind).Inc()
}

// SetElementsAge records how old the elements of the last run were.
func SetElementsAge(age time.Duration) {
	elementsAgeSeconds.Set(age.Seconds())
}

// ElementsFetched counts one fetch attempt; result is "ok" or "error".
func ElementsFetched(result string) {
	elementsFetchesTotal.WithLabelValues(result).Inc()
}

// SetSensorAvailable mirrors the sensor availability.
func SetSensorAvailable(ok bool) {
	if ok {
		sensorAvailable.Set(1)
		return
	}
	sensorAvailable.Set(0)
}

// MQTTPublished counts one publish; result is "ok" or "error".
func MQTTPublished(result string) {
	mqttPublishesTotal.WithLabelValues(result).Inc()
}

// StreamOpened tracks a new sensor stream.
func StreamOpened() {
	streamsActive.Inc()
	streamEventsTotal.WithLabelValues("connect").Inc()
}

// StreamClosed tracks a finished sensor stream.
func StreamClosed() {
	streamsActive.Dec()
	streamEventsTotal.WithLabelValues("disconnect").Inc()
}

// StreamEvent counts a stream event such as "rejected" or "send_error".
func StreamEvent(event string) {
	streamEventsTotal.WithLabelValues(event).Inc()
}

// knownRoutes bounds the path label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/sensor":        true,
	"/api/v1/sensor/stream": true,
	"/api/v1/passes":        true,
	"/api/v1/tle/metadata":  true,
	"/api/v1/refresh":       true,
}

// normalizeRoute maps a request path to a bounded label. Anything not served
// by the API, such as scanner probes, collapses to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// streaming handlers need for flushing.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

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
