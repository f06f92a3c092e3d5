// Package config reads service settings from ISSSPOTTER_* environment
// variables, optionally seeded from a .env file.
//
// Observer and threshold settings are validated strictly: any invalid value
// fails startup with a ConfigurationError listing every offending variable.
// Ambient settings (timeouts, intervals, paths) are lenient: a malformed value
// is logged and replaced by its default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dirtyharryiv/iss-spotter/internal/auth"
	"github.com/dirtyharryiv/iss-spotter/internal/crew"
)

const prefix = "ISSSPOTTER_"

// Prediction defaults. The service requires explicit coordinates unless it
// reads them from Home Assistant; DefaultLatitude and DefaultLongitude only
// seed the diag command's flags.
const (
	DefaultLatitude         = 48.001
	DefaultLongitude        = 7.481
	DefaultMinElevation     = 20.0
	DefaultSunAltitude      = -6.0
	DefaultMinDurationMin   = 2
	DefaultSearchWindowDays = 5
	MaxSearchWindowDays     = 14
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   slog.Level
	TrustProxy bool
	Auth       auth.Config

	Location      LocationConfig
	Prediction    PredictionConfig
	Sensor        SensorConfig
	TLE           TLEConfig
	Crew          CrewConfig
	HomeAssistant HomeAssistantConfig
	MQTT          MQTTConfig
	Stream        StreamConfig
	Tracing       TracingConfig
}

// LocationConfig selects the observer.
type LocationConfig struct {
	UseHomeAssistant bool
	Latitude         float64
	Longitude        float64
	Elevation        float64 // meters
	TimeZone         string  // IANA name; empty means UTC unless Home Assistant supplies one
}

// PredictionConfig holds the pass thresholds.
type PredictionConfig struct {
	MinElevationDeg         float64
	SunAltitudeThresholdDeg float64
	MinDuration             time.Duration
	WindowDays              int
	MaxElementsAge          time.Duration
}

type SensorConfig struct {
	ScanInterval time.Duration
	GracePeriod  time.Duration
}

type TLEConfig struct {
	SourceURL       string
	ExtraURLs       []string
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
	NORADID         int
}

type CrewConfig struct {
	Enabled bool
	URL     string
}

type HomeAssistantConfig struct {
	URL   string
	Token string
}

// MQTTConfig is disabled when Broker is empty.
type MQTTConfig struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	DiscoveryPrefix string
}

func (c MQTTConfig) Enabled() bool { return c.Broker != "" }

type StreamConfig struct {
	MaxConcurrentPerIP int
	KeepaliveInterval  time.Duration
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// FieldError describes one invalid variable.
type FieldError struct {
	Key    string
	Value  string
	Reason string
}

func (f FieldError) String() string {
	if f.Value == "" {
		return fmt.Sprintf("%s: %s", f.Key, f.Reason)
	}
	return fmt.Sprintf("%s=%q: %s", f.Key, f.Value, f.Reason)
}

// ConfigurationError aggregates every invalid variable found by Load.
type ConfigurationError struct {
	Fields []FieldError
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Has reports whether key is among the invalid variables.
func (e *ConfigurationError) Has(key string) bool {
	for _, f := range e.Fields {
		if f.Key == key || f.Key == prefix+key {
			return true
		}
	}
	return false
}

// LoadDotEnv seeds the environment from path. Variables already set win.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment.
func Load(logger *slog.Logger) (Config, error) {
	l := &loader{logger: logger}

	cfg := Config{
		HTTPAddr:   l.str("HTTP_ADDR", ":8080"),
		LogLevel:   l.level("LOG_LEVEL", slog.LevelInfo),
		TrustProxy: l.boolean("TRUST_PROXY", false),
	}
	cfg.Auth = l.authConfig()
	cfg.Location = l.locationConfig()
	cfg.Prediction = l.predictionConfig()
	cfg.Sensor = l.sensorConfig()
	cfg.TLE = l.tleConfig()
	cfg.Crew = CrewConfig{
		Enabled: l.boolean("CREW_ENABLED", true),
		URL:     l.str("CREW_URL", crew.DefaultURL),
	}
	cfg.HomeAssistant = HomeAssistantConfig{
		URL:   strings.TrimRight(l.str("HA_URL", ""), "/"),
		Token: l.str("HA_TOKEN", ""),
	}
	cfg.MQTT = MQTTConfig{
		Broker:          l.str("MQTT_BROKER", ""),
		ClientID:        l.str("MQTT_CLIENT_ID", ""),
		Username:        l.str("MQTT_USERNAME", ""),
		Password:        l.str("MQTT_PASSWORD", ""),
		DiscoveryPrefix: l.str("MQTT_DISCOVERY_PREFIX", "homeassistant"),
	}
	cfg.Stream = StreamConfig{
		MaxConcurrentPerIP: l.positiveInt("STREAM_MAX_CONCURRENT", 5),
		KeepaliveInterval:  time.Duration(l.positiveInt("STREAM_KEEPALIVE_SECONDS", 30)) * time.Second,
	}
	cfg.Tracing = TracingConfig{
		Enabled:     l.boolean("TRACING_ENABLED", false),
		ServiceName: l.str("TRACING_SERVICE_NAME", "iss-spotter"),
	}

	if cfg.Location.UseHomeAssistant {
		if cfg.HomeAssistant.URL == "" {
			l.invalid("HA_URL", "", "required when USE_HA_LOCATION is true")
		}
		if cfg.HomeAssistant.Token == "" {
			l.invalid("HA_TOKEN", "", "required when USE_HA_LOCATION is true")
		}
	}

	if len(l.errs) > 0 {
		return cfg, &ConfigurationError{Fields: l.errs}
	}
	return cfg, nil
}

func (l *loader) authConfig() auth.Config {
	cfg := auth.Config{Enabled: l.strictBool("AUTH_ENABLED", false)}
	if cfg.Enabled {
		cfg.Token = l.str("AUTH_TOKEN", "")
		if cfg.Token == "" {
			l.invalid("AUTH_TOKEN", "", "required when auth is enabled")
		}
	}
	return cfg
}

func (l *loader) locationConfig() LocationConfig {
	cfg := LocationConfig{
		UseHomeAssistant: l.strictBool("USE_HA_LOCATION", false),
		Latitude:         l.float("LATITUDE", 0),
		Longitude:        l.float("LONGITUDE", 0),
		Elevation:        l.float("ELEVATION", 0),
		TimeZone:         l.str("TIME_ZONE", ""),
	}
	if !cfg.UseHomeAssistant {
		for _, key := range []string{"LATITUDE", "LONGITUDE"} {
			if l.raw(key) == "" {
				l.invalid(key, "", "required when USE_HA_LOCATION is false")
			}
		}
	}
	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		l.invalid("LATITUDE", l.raw("LATITUDE"), "must be within [-90, 90]")
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		l.invalid("LONGITUDE", l.raw("LONGITUDE"), "must be within [-180, 180]")
	}
	if cfg.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
			l.invalid("TIME_ZONE", cfg.TimeZone, "unknown time zone")
		}
	}
	return cfg
}

func (l *loader) predictionConfig() PredictionConfig {
	cfg := PredictionConfig{
		MinElevationDeg:         l.float("MIN_ELEVATION", DefaultMinElevation),
		SunAltitudeThresholdDeg: l.float("SUN_ALTITUDE_THRESHOLD", DefaultSunAltitude),
		WindowDays:              l.strictInt("SEARCH_WINDOW_DAYS", DefaultSearchWindowDays),
		MaxElementsAge:          time.Duration(l.positiveInt("TLE_MAX_AGE_DAYS", 14)) * 24 * time.Hour,
	}
	minutes := l.float("MIN_DURATION_MINUTES", DefaultMinDurationMin)

	if cfg.MinElevationDeg < 0 || cfg.MinElevationDeg > 90 {
		l.invalid("MIN_ELEVATION", l.raw("MIN_ELEVATION"), "must be within [0, 90]")
	}
	if cfg.SunAltitudeThresholdDeg >= 0 || cfg.SunAltitudeThresholdDeg < -90 {
		l.invalid("SUN_ALTITUDE_THRESHOLD", l.raw("SUN_ALTITUDE_THRESHOLD"), "must be negative and not below -90")
	}
	if minutes < 0 {
		l.invalid("MIN_DURATION_MINUTES", l.raw("MIN_DURATION_MINUTES"), "must not be negative")
	} else {
		cfg.MinDuration = time.Duration(minutes * float64(time.Minute))
	}
	if cfg.WindowDays < 1 || cfg.WindowDays > MaxSearchWindowDays {
		l.invalid("SEARCH_WINDOW_DAYS", l.raw("SEARCH_WINDOW_DAYS"), fmt.Sprintf("must be within [1, %d]", MaxSearchWindowDays))
	}
	return cfg
}

func (l *loader) sensorConfig() SensorConfig {
	return SensorConfig{
		ScanInterval: time.Duration(l.positiveInt("SCAN_INTERVAL_SECONDS", 60)) * time.Second,
		GracePeriod:  time.Duration(l.positiveInt("GRACE_PERIOD_MINUTES", 60)) * time.Minute,
	}
}

func (l *loader) tleConfig() TLEConfig {
	cfg := TLEConfig{
		SourceURL:       l.str("TLE_SOURCE_URL", ""),
		CacheDir:        l.str("TLE_CACHE_DIR", "/tmp/iss-spotter/tle"),
		MaxFiles:        l.positiveInt("TLE_MAX_FILES", 5),
		RefreshInterval: time.Duration(l.positiveInt("TLE_REFRESH_HOURS", 12)) * time.Hour,
		NORADID:         l.positiveInt("NORAD_ID", 25544),
	}
	if v := l.raw("TLE_EXTRA_URLS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ExtraURLs = append(cfg.ExtraURLs, u)
			}
		}
	}
	return cfg
}

type loader struct {
	logger *slog.Logger
	errs   []FieldError
}

func (l *loader) raw(key string) string {
	return strings.TrimSpace(os.Getenv(prefix + key))
}

func (l *loader) invalid(key, value, reason string) {
	l.errs = append(l.errs, FieldError{Key: prefix + key, Value: value, Reason: reason})
}

func (l *loader) str(key, def string) string {
	if v := l.raw(key); v != "" {
		return v
	}
	return def
}

// float is strict: observer and threshold values must parse.
func (l *loader) float(key string, def float64) float64 {
	v := l.raw(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		l.invalid(key, v, "not a number")
		return def
	}
	return f
}

func (l *loader) strictInt(key string, def int) int {
	v := l.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.invalid(key, v, "not an integer")
		return def
	}
	return n
}

func (l *loader) strictBool(key string, def bool) bool {
	v := l.raw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.invalid(key, v, "must be a boolean value (true/false/1/0)")
		return def
	}
	return b
}

func (l *loader) boolean(key string, def bool) bool {
	v := l.raw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.logger.Warn("invalid "+prefix+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func (l *loader) positiveInt(key string, def int) int {
	v := l.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		l.logger.Warn("invalid "+prefix+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func (l *loader) level(key string, def slog.Level) slog.Level {
	v := l.raw(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		l.logger.Warn("invalid "+prefix+key+" value, using default", "value", v, "default", def.String())
		return def
	}
	return lvl
}

// PresentationZone resolves the zone used for sensor timestamps: the
// configured zone, else fallback (from Home Assistant), else UTC.
func (c LocationConfig) PresentationZone(fallback *time.Location) *time.Location {
	if c.TimeZone != "" {
		if loc, err := time.LoadLocation(c.TimeZone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}
