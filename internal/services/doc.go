// Package services talks to the upstream music catalog.
//
// # Catalog client
//
// [SpotifyClient] implements [CatalogAPI] against the Spotify Web API. Every call takes a bearer
// token from a [TokenProvider] (normally an [auth.Cache]). The auth transition is two steps:
// send, and on 401 force one refresh and resend. A second 401 is an auth failure.
//
// Paging for search is clamped (limit 1-50, offset 0-1000) and the clamped values are echoed.
// Track lookups are chunked by the upstream ceiling and drop unknown ids.
//
// # Feature fetcher
//
// [FeatureFetcher] partitions ids into chunks of the feature batch size, fetches chunks with
// bounded concurrency via errgroup and writes results by chunk index, so output order always
// matches input order. Tracks without analysis get a nil embedding.
//
// # Catalog facade
//
// [Catalog] is what the HTTP and gRPC layers call: search with optional embeddings and batch
// lookup of tracks with embeddings.
//
// # Error Handling
//
// All failures are [shared.Error] values, matchable with errors.Is:
//   - [shared.ErrAuthFailed] : token refresh failed or upstream rejected a fresh token
//   - [shared.ErrRateLimited] : upstream 429; [shared.RetryAfterOf] gives the hint
//   - [shared.ErrTimeout] : upstream call exceeded the request timeout
//   - [shared.ErrUpstreamProtocol] : undecodable or malformed upstream payload
//   - [shared.ErrInvalidInput] : empty query, no ids or too many ids
//   - [shared.ErrAPIRequest] : any other non-2xx upstream status
package services
