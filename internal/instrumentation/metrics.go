package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the proxy
type Metrics struct {
	UpstreamRequestsTotal   metric.Int64Counter
	UpstreamRequestDuration metric.Float64Histogram
	UpstreamRateLimited     metric.Int64Counter

	TokenRefreshes metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	upstream := inst.Meter("upstream")
	auth := inst.Meter("auth")
	http := inst.Meter("http")

	var err error
	m.UpstreamRequestsTotal, err = upstream.Int64Counter(
		"tracksearch.upstream.requests.total",
		metric.WithDescription("Total number of upstream catalog API calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream.requests.total counter: %w", err)
	}

	m.UpstreamRequestDuration, err = upstream.Float64Histogram(
		"tracksearch.upstream.request.duration",
		metric.WithDescription("Upstream catalog API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream.request.duration histogram: %w", err)
	}

	m.UpstreamRateLimited, err = upstream.Int64Counter(
		"tracksearch.upstream.rate_limited",
		metric.WithDescription("Number of rate-limited upstream responses"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream.rate_limited counter: %w", err)
	}

	m.TokenRefreshes, err = auth.Int64Counter(
		"tracksearch.token.refreshes",
		metric.WithDescription("Number of client-credentials token refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshes counter: %w", err)
	}

	m.HTTPRequestsTotal, err = http.Int64Counter(
		"tracksearch.http.requests.total",
		metric.WithDescription("Total number of inbound HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = http.Float64Histogram(
		"tracksearch.http.request.duration",
		metric.WithDescription("Inbound HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	return m, nil
}

// RecordUpstreamRequest records one upstream call. status is 0 when no response arrived.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, operation string, status int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrUpstreamOperation, operation),
		attribute.Int(AttrUpstreamStatus, status),
	)
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	m.UpstreamRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordRateLimited counts a 429 from upstream.
func (m *Metrics) RecordRateLimited(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.UpstreamRateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrUpstreamOperation, operation)))
}

// RecordTokenRefresh counts a token refresh. forced is true for refreshes triggered by a 401.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, forced, success bool) {
	if m == nil {
		return
	}
	m.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrTokenForced, forced),
		attribute.Bool(AttrTokenSuccess, success),
	))
}

// RecordHTTPRequest records an inbound HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}
