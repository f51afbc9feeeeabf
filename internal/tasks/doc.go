// Package tasks runs long track-embedding jobs with real-time progress reporting.
//
// # Bulk Embedding
//
// [Engine.Embed] takes an id list of any length, splits it into batches no larger than the catalog's
// per-request ceiling and looks each batch up through [Catalog.TracksWithFeatures] on a bounded worker
// pool, paced by a [rate.Limiter]. Results are reassembled in input order. A failed batch does not stop
// the others; it is reported in [BulkResult.Failures].
//
// # Progress Reporting
//
// Progress flows through an optional channel of [ProgressUpdate]. Updates use select with default so a slow
// consumer never blocks the workers.
//
// # Id Lists
//
// [ReadIDs] parses id files: one or more ids per line separated by commas or whitespace, "#" comments, and
// spotify:track: URIs or open.spotify.com track links in place of bare ids.
package tasks
