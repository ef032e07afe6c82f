package transport

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "genstudio/transport"

// Traced records one client span per stream.
type Traced struct {
	next   Caller
	tracer trace.Tracer
}

func NewTraced(next Caller) *Traced {
	return &Traced{next: next, tracer: otel.Tracer(tracerName)}
}

func (t *Traced) Stream(ctx context.Context, call Call, onFrame func(Frame)) error {
	ctx, span := t.tracer.Start(ctx, "stream "+call.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("genstudio.endpoint", call.Endpoint),
			attribute.String("genstudio.run_id", call.RunID),
		),
	)
	defer span.End()

	frames := 0
	err := t.next.Stream(ctx, call, func(f Frame) {
		frames++
		onFrame(f)
	})
	span.SetAttributes(attribute.Int("genstudio.frames", frames))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
