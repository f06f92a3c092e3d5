package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

const (
	maxQueryDays    = 14
	adHocRunTimeout = 30 * time.Second
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sensorHandler(src SensorSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no prediction yet")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func tleMetadataHandler(src ElementsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		md, ok := src.Metadata()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no orbital elements loaded")
			return
		}
		writeJSON(w, http.StatusOK, md)
	}
}

func refreshHandler(src SensorSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queued := src.Trigger()
		logger.Debug("refresh requested", "queued", queued)
		status := "accepted"
		if !queued {
			status = "already pending"
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
	}
}

// passesHandler serves the passes behind the current sensor state. With
// lat and lon query parameters it runs a fresh prediction for that
// location instead; the other thresholds default to the sensor's.
func passesHandler(opts Options, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has("lat") && !q.Has("lon") {
			snap := opts.Sensor.Snapshot()
			if snap == nil || snap.Result() == nil {
				writeError(w, http.StatusServiceUnavailable, "no prediction yet")
				return
			}
			writeJSON(w, http.StatusOK, snap.Result())
			return
		}

		req, err := parsePassQuery(q, opts.Defaults, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), adHocRunTimeout)
		defer cancel()

		res, err := opts.Finder.Find(ctx, req)
		if err != nil {
			status := statusForError(err)
			logger.Warn("ad-hoc prediction failed", "error", err, "kind", geometry.ErrorKind(err), "status", status)
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func statusForError(err error) int {
	switch geometry.ErrorKind(err) {
	case "unavailable", "stale":
		return http.StatusServiceUnavailable
	case "canceled":
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parsePassQuery(q url.Values, def sensor.Settings, now time.Time) (passes.Request, error) {
	if !q.Has("lat") || !q.Has("lon") {
		return passes.Request{}, errors.New("lat and lon must be given together")
	}

	var perr error
	num := func(key string, fallback float64) float64 {
		if !q.Has(key) {
			return fallback
		}
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if (err != nil || math.IsNaN(v) || math.IsInf(v, 0)) && perr == nil {
			perr = fmt.Errorf("invalid %s parameter: must be a finite number", key)
		}
		return v
	}

	lat := num("lat", 0)
	lon := num("lon", 0)
	elev := num("elevation", 0)
	minEl := num("min_elevation", def.MinElevationDeg)
	sunAlt := num("sun_altitude", def.SunAltitudeThresholdDeg)
	minDur := num("min_duration_minutes", def.MinDuration.Minutes())
	days := num("days", float64(def.WindowDays))
	if perr != nil {
		return passes.Request{}, perr
	}

	obs, err := geometry.NewObserver(lat, lon, elev)
	if err != nil {
		return passes.Request{}, err
	}
	if days != float64(int(days)) || days < 1 || days > maxQueryDays {
		return passes.Request{}, fmt.Errorf("days must be a whole number within [1, %d]", maxQueryDays)
	}
	if sunAlt >= 0 {
		return passes.Request{}, errors.New("sun_altitude must be negative")
	}
	if minDur < 0 {
		return passes.Request{}, errors.New("min_duration_minutes must not be negative")
	}

	req := passes.Request{
		Observer:                obs,
		Window:                  passes.NewWindow(now, int(days)),
		MinElevationDeg:         minEl,
		MinDuration:             time.Duration(minDur * float64(time.Minute)),
		SunAltitudeThresholdDeg: sunAlt,
	}
	if err := req.Validate(); err != nil {
		return passes.Request{}, err
	}
	return req, nil
}
