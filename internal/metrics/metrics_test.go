package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/sensor", "/api/v1/sensor"},
		{"/api/v1/sensor/stream", "/api/v1/sensor/stream"},
		{"/api/v1/passes", "/api/v1/passes"},
		{"/api/v1/tle/metadata", "/api/v1/tle/metadata"},
		{"/api/v1/refresh", "/api/v1/refresh"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/passes/25544", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 probe paths produce exactly one
// distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/api/v1/passes/" + string(rune('0'+i%10)) + string(rune('0'+i/10)))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

// TestHandlerExposesDomainMetrics checks the collectors are registered and
// exported under the issspotter_ prefix.
func TestHandlerExposesDomainMetrics(t *testing.T) {
	ObservePrediction(120*time.Millisecond, 3)
	PredictionFailed("stale")
	SetElementsAge(36 * time.Hour)
	ElementsFetched("ok")
	SetSensorAvailable(true)
	MQTTPublished("ok")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		"issspotter_passes_found 3",
		`issspotter_prediction_errors_total{kind="stale"}`,
		"issspotter_elements_age_seconds 129600",
		`issspotter_elements_fetches_total{result="ok"}`,
		"issspotter_sensor_available 1",
		`issspotter_mqtt_publishes_total{result="ok"}`,
		"issspotter_prediction_duration_seconds_count",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
