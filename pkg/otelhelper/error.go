package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetOutcome marks a span with the success flag of a finished invocation.
// Failed results are recorded as span errors with their message.
func SetOutcome(span trace.Span, success bool, message string) {
	span.SetAttributes(attribute.Bool(SuccessKey, success))

	if !success {
		span.SetStatus(codes.Error, message)
	}
}
