package passes

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
)

const tracerName = "github.com/dirtyharryiv/iss-spotter/internal/passes"

// Finder resolves the current elements and runs Compute against them.
type Finder struct {
	provider geometry.ElementsProvider
	cfg      geometry.Config
	logger   *slog.Logger
}

// NewFinder creates a Finder reading elements from provider.
func NewFinder(provider geometry.ElementsProvider, cfg geometry.Config, logger *slog.Logger) *Finder {
	return &Finder{provider: provider, cfg: cfg, logger: logger}
}

// Find predicts the visible passes for req. Elements are resolved once and
// checked for staleness against the window start before any sampling, so the
// only blocking step happens ahead of the computation.
func (f *Finder) Find(ctx context.Context, req Request) (*PredictionResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "passes/find", trace.WithAttributes(
		attribute.Float64("observer.latitude", req.Observer.LatitudeDeg),
		attribute.Float64("observer.longitude", req.Observer.LongitudeDeg),
		attribute.String("window.start", req.Window.Start.UTC().Format(time.RFC3339)),
		attribute.String("window.end", req.Window.End.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	start := time.Now()
	res, err := f.find(ctx, req)
	if err != nil {
		kind := geometry.ErrorKind(err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", kind))
		metrics.PredictionFailed(kind)
		return res, err
	}

	metrics.ObservePrediction(time.Since(start), len(res.Passes))
	span.SetAttributes(attribute.Int("passes", len(res.Passes)))
	f.logger.Debug("prediction complete",
		"passes", len(res.Passes),
		"elements_epoch", res.ElementsEpoch,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (f *Finder) find(ctx context.Context, req Request) (*PredictionResult, error) {
	el, err := f.provider.CurrentElements(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetElementsAge(el.AgeAt(req.Window.Start))

	eng, err := geometry.NewEngine(el, req.Window.Start, f.cfg)
	if err != nil {
		return nil, err
	}

	res, err := Compute(ctx, eng, req)
	if res != nil {
		res.ElementsEpoch = eng.Elements().Epoch
	}
	return res, err
}
