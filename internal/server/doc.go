// Package server exposes the catalog over HTTP and gRPC.
//
// # Router Infrastructure
//
// [BasicRouter] uses [http.ServeMux] internally with method filtering, and answers unmatched paths with the JSON
// error envelope. [Middleware] added first runs outermost.
//
// # HTTP API
//
//   - GET /health
//   - GET /api/v1/search?q=&limit=&offset=&include_features=
//   - GET /api/v1/tracks/with-features?ids=a,b
//
// Catalog routes answer with [SearchResponse]. Failures answer with [ErrorResponse] and a status derived from the
// error kind: invalid input 400, rate limiting 429 with Retry-After, upstream timeouts 504, other upstream and
// credential failures 502.
//
// # gRPC
//
// spotify.SpotifySearch/GetTracksWithFeatures is registered by hand through [SpotifySearchServiceDesc]. Messages
// are encoded in the protobuf wire format by default, so stubs generated from spotify.proto interoperate:
//
//	message TracksRequest  { repeated string track_ids = 1; }
//	message TrackEmbedding { string id = 1; repeated float embedding = 2; map<string, string> metadata = 3; }
//	message TracksResponse { repeated TrackEmbedding tracks = 1; }
//
// The "json" content-subtype is also accepted. Callers use [SpotifySearchClient].
package server
