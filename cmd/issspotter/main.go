package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dirtyharryiv/iss-spotter/internal/api"
	"github.com/dirtyharryiv/iss-spotter/internal/config"
	"github.com/dirtyharryiv/iss-spotter/internal/crew"
	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/homeassistant"
	"github.com/dirtyharryiv/iss-spotter/internal/mqtt"
	"github.com/dirtyharryiv/iss-spotter/internal/observability"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
	"github.com/dirtyharryiv/iss-spotter/internal/stream"
	"github.com/dirtyharryiv/iss-spotter/internal/tle"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional file of ISSSPOTTER_* variables")
	flag.Parse()

	bootLogger := observability.NewLogger(slog.LevelInfo)
	if err := config.LoadDotEnv(*envFile); err != nil {
		bootLogger.Warn("ignoring env file", "path", *envFile, "error", err)
	}
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	observer, zone, err := resolveLocation(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot resolve observer location", "error", err)
		os.Exit(1)
	}

	fetcher := tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	elementsCache := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles)
	provider := tle.NewProvider(fetcher, elementsCache, tle.Config{
		NORADID:         cfg.TLE.NORADID,
		RefreshInterval: cfg.TLE.RefreshInterval,
	}, logger)
	if err := provider.LoadCache(); err != nil {
		logger.Info("no usable elements in cache, fetching on first prediction", "cache_dir", elementsCache.Dir(), "error", err)
	}
	finder := passes.NewFinder(provider, geometry.Config{MaxElementsAge: cfg.Prediction.MaxElementsAge}, logger)

	var crewSource sensor.CrewSource
	if cfg.Crew.Enabled {
		crewSource = crew.NewFetcher(cfg.Crew.URL)
	}

	settings := sensor.Settings{
		Observer:                observer,
		MinElevationDeg:         cfg.Prediction.MinElevationDeg,
		MinDuration:             cfg.Prediction.MinDuration,
		SunAltitudeThresholdDeg: cfg.Prediction.SunAltitudeThresholdDeg,
		WindowDays:              cfg.Prediction.WindowDays,
		ScanInterval:            cfg.Sensor.ScanInterval,
		GracePeriod:             cfg.Sensor.GracePeriod,
		Location:                zone,
	}

	hub := stream.NewHub(stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		TrustProxy:         cfg.TrustProxy,
	}, logger)
	sinks := []sensor.Sink{hub}
	mqttEnabled := false
	if cfg.MQTT.Enabled() {
		pub, err := mqtt.Connect(ctx, mqtt.Config{
			Broker:          cfg.MQTT.Broker,
			ClientID:        cfg.MQTT.ClientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			Observer:        observer,
		}, logger)
		if err != nil {
			logger.Error("mqtt disabled", "error", err)
		} else {
			sinks = append(sinks, pub)
			mqttEnabled = true
			defer pub.Close(context.Background())
		}
	}

	adapter := sensor.New(finder, crewSource, settings, logger, sinks...)

	srv := api.NewServer(api.Options{
		Addr:       cfg.HTTPAddr,
		Auth:       cfg.Auth,
		TrustProxy: cfg.TrustProxy,
		Sensor:     adapter,
		Elements:   provider,
		Finder:     finder,
		Defaults:   settings,
		Stream:     hub,
	}, logger)

	go provider.Run(ctx)
	go adapter.Run(ctx)

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"mqtt_enabled", mqttEnabled,
			"latitude", observer.LatitudeDeg,
			"longitude", observer.LongitudeDeg,
			"time_zone", zone.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// resolveLocation returns the observer and presentation zone, asking Home
// Assistant when configured to.
func resolveLocation(ctx context.Context, cfg config.Config, logger *slog.Logger) (geometry.Observer, *time.Location, error) {
	loc := cfg.Location
	var haZone *time.Location

	if loc.UseHomeAssistant {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		home, err := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token).Location(ctx)
		if err != nil {
			return geometry.Observer{}, nil, err
		}
		loc.Latitude, loc.Longitude, loc.Elevation = home.Latitude, home.Longitude, home.Elevation
		if haZone, err = home.TimeLocation(); err != nil {
			logger.Warn("ignoring home assistant time zone", "error", err)
		}
		logger.Info("using home assistant location", "location_name", home.Name, "time_zone", home.TimeZone)
	}

	obs, err := geometry.NewObserver(loc.Latitude, loc.Longitude, loc.Elevation)
	if err != nil {
		return geometry.Observer{}, nil, err
	}
	return obs, loc.PresentationZone(haZone), nil
}
