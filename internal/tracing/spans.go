package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRunID       = "run.id"
	AttrRunKind     = "run.kind"
	AttrProfile     = "profile.name"
	AttrMachineID   = "profile.machine_id"
	AttrEnvironment = "profile.environment"
	AttrItemID      = "item.id"
	AttrItemStatus  = "item.status"
	AttrItemLayer   = "item.layer"
	AttrItemPath    = "item.path"
	AttrErrorMsg    = "error.message"
	AttrDone        = "count.done"
	AttrSkipped     = "count.skipped"
	AttrFailed      = "count.failed"
)

// EventItem is the span event recorded for each processed item.
const EventItem = "item.processed"

// ItemEvent records one processed item on the span in ctx.
func ItemEvent(ctx context.Context, id, status, layer, path string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrItemID, id),
		attribute.String(AttrItemStatus, status),
	}
	if layer != "" {
		attrs = append(attrs, attribute.String(AttrItemLayer, layer))
	}
	if path != "" {
		attrs = append(attrs, attribute.String(AttrItemPath, path))
	}
	if err != nil {
		attrs = append(attrs, attribute.String(AttrErrorMsg, err.Error()))
	}
	span.AddEvent(EventItem, trace.WithAttributes(attrs...))
}

// EndRun sets the outcome counts and status on span and ends it.
func EndRun(span trace.Span, done, skipped, failed int, err error) {
	span.SetAttributes(
		attribute.Int(AttrDone, done),
		attribute.Int(AttrSkipped, skipped),
		attribute.Int(AttrFailed, failed),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case failed > 0:
		span.SetStatus(codes.Error, "some items failed")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
