// Package models defines the catalog entities shared by the client, the transports and the formatters.
//
// Upstream shapes:
//   - [Track], [Artist], [Album] : catalog metadata as decoded from the Web API
//   - [SearchResult] : one page of search results with the clamped paging values
//   - [AudioFeatures] : upstream per-track audio analysis
//
// Derived values:
//   - [Embedding] : fixed-order 12-dimension vector built from [AudioFeatures]
//   - [TrackWithFeatures] : a track, its embedding (if any) and its flat metadata map
package models
