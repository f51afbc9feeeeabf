// Package instrumentation provides OpenTelemetry metrics and tracing for the catalog proxy.
//
// By default every provider is a no-op, so recording costs nothing until a caller either
// enables tracing (an SDK tracer provider carrying the service resource) or supplies its own
// providers through [Config].
//
// # Metrics
//
//   - tracksearch.upstream.requests.total: upstream catalog calls by operation and status
//   - tracksearch.upstream.request.duration: upstream latency in milliseconds
//   - tracksearch.upstream.rate_limited: 429 responses seen from upstream
//   - tracksearch.token.refreshes: client-credentials refreshes by result
//   - tracksearch.http.requests.total: inbound HTTP requests by route and status
//
// # Tracing
//
// Spans wrap each upstream call and each token refresh. Token values and client secrets are
// never attached to spans or metrics; only metadata such as the operation name, status and expiry.
//
// All helpers are nil-safe: a nil [*Instrumentation] or nil [*Metrics] records nothing.
package instrumentation
