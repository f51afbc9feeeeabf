package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
//
// Never attach bearer tokens or client secrets; only metadata.
const (
	AttrUpstreamOperation = "upstream.operation"
	AttrUpstreamStatus    = "upstream.status"
	AttrUpstreamBatchSize = "upstream.batch_size"
	AttrUpstreamAttempt   = "upstream.attempt"

	AttrTokenForced    = "token.forced"
	AttrTokenSuccess   = "token.success"
	AttrTokenExpiresAt = "token.expires_at"

	AttrErrorKind = "error.kind"

	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrRequestID      = "http.request_id"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddUpstreamAttributes tags a span with the upstream operation and attempt number.
func AddUpstreamAttributes(span trace.Span, operation string, attempt int) {
	SetSpanAttributes(span,
		attribute.String(AttrUpstreamOperation, operation),
		attribute.Int(AttrUpstreamAttempt, attempt),
	)
}

// AddErrorKind tags a span with an error classification such as "rate_limited".
func AddErrorKind(span trace.Span, kind string) {
	if kind != "" {
		SetSpanAttributes(span, attribute.String(AttrErrorKind, kind))
	}
}
