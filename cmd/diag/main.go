// Command diag prints the visible ISS passes for one location and exits.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"
	_ "time/tzdata"

	"github.com/dirtyharryiv/iss-spotter/internal/config"
	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
	"github.com/dirtyharryiv/iss-spotter/internal/tle"
)

// fileProvider serves elements read from a local TLE file.
type fileProvider struct {
	elements geometry.OrbitalElements
}

func (p fileProvider) CurrentElements(context.Context) (geometry.OrbitalElements, error) {
	return p.elements, nil
}

func loadFile(path string, noradID int, logger *slog.Logger) (fileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileProvider{}, err
	}
	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		return fileProvider{}, err
	}
	e, ok := tle.Select(entries, noradID)
	if !ok {
		return fileProvider{}, fmt.Errorf("%s: %w", path, tle.ErrNotInFeed)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileProvider{}, err
	}
	return fileProvider{elements: e.Elements(info.ModTime())}, nil
}

func main() {
	var (
		lat      = flag.Float64("lat", config.DefaultLatitude, "observer latitude in degrees")
		lon      = flag.Float64("lon", config.DefaultLongitude, "observer longitude in degrees")
		elev     = flag.Float64("elevation", 0, "observer elevation in meters")
		days     = flag.Int("days", config.DefaultSearchWindowDays, "search window in days")
		minEl    = flag.Float64("min-elevation", config.DefaultMinElevation, "minimum elevation in degrees")
		sunAlt   = flag.Float64("sun-altitude", config.DefaultSunAltitude, "sun altitude threshold in degrees")
		minDur   = flag.Duration("min-duration", config.DefaultMinDurationMin*time.Minute, "minimum visible duration")
		tleFile  = flag.String("tle-file", "", "read elements from this file instead of fetching")
		noradID  = flag.Int("norad-id", geometry.ISSNoradID, "catalog number to predict")
		tz       = flag.String("tz", "UTC", "time zone for the printed times")
		maxAge   = flag.Duration("max-age", geometry.DefaultMaxElementsAge, "reject elements older than this")
		logLevel = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(2)
	}
	obs, err := geometry.NewObserver(*lat, *lon, *elev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(2)
	}

	var provider geometry.ElementsProvider
	if *tleFile != "" {
		fp, err := loadFile(*tleFile, *noradID, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR reading elements:", err)
			os.Exit(1)
		}
		provider = fp
	} else {
		provider = tle.NewProvider(tle.NewFetcher("", logger), nil, tle.Config{NORADID: *noradID}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	req := passes.Request{
		Observer:                obs,
		Window:                  passes.NewWindow(time.Now().UTC(), *days),
		MinElevationDeg:         *minEl,
		MinDuration:             *minDur,
		SunAltitudeThresholdDeg: *sunAlt,
	}
	finder := passes.NewFinder(provider, geometry.Config{MaxElementsAge: *maxAge}, logger)

	start := time.Now()
	res, err := finder.Find(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR (%s): %v\n", geometry.ErrorKind(err), err)
		if res == nil {
			os.Exit(1)
		}
	}

	fmt.Print(render(res, loc))
	fmt.Printf("computed in %s\n", time.Since(start).Round(time.Millisecond))
}
