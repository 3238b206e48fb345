package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/loqalabs/file2text/internal/fault"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/file2text/pipeline"

type instruments struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

func newInstruments(log *slog.Logger) instruments {
	meter := otel.Meter(instrumentationName)
	inst := instruments{tracer: otel.Tracer(instrumentationName)}

	duration, err := meter.Float64Histogram("file2text.stage.duration",
		metric.WithDescription("Duration of pipeline stages"),
		metric.WithUnit("s"))
	if err != nil {
		log.Warn("failed to create stage duration histogram", slogError(err))
		duration, _ = noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("file2text.stage.duration")
	}
	failures, err := meter.Int64Counter("file2text.stage.failures",
		metric.WithDescription("Failed pipeline stages by kind"))
	if err != nil {
		log.Warn("failed to create stage failure counter", slogError(err))
		failures, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("file2text.stage.failures")
	}
	inst.duration = duration
	inst.failures = failures
	return inst
}

// stage runs fn inside a span named pipeline.<name> and records its
// duration and failure.
func (i instruments) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	stageAttr := attribute.String("stage", name)
	i.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(stageAttr))
	if err != nil {
		i.fail(ctx, name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (i instruments) fail(ctx context.Context, name string, err error) {
	i.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", name),
		attribute.String("kind", fault.KindOf(err).String()),
	))
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
