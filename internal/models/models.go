package models

import "strings"

const (
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 50
	MaxOffset    = 1000

	trackURLPrefix = "https://open.spotify.com/track/"
)

// ExternalURLs holds the public web links of a catalog object.
type ExternalURLs struct {
	Spotify string `json:"spotify,omitempty"`
}

// Image is a cover image reference.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Artist represents a credited artist.
type Artist struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Album represents the album a track belongs to.
type Album struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name"`
	ReleaseDate  string       `json:"release_date,omitempty"`
	Images       []Image      `json:"images"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// ImageURL returns the first (largest) cover image, or "".
func (a Album) ImageURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

// Track represents a catalog track.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URI          string       `json:"uri"`
	DurationMS   int          `json:"duration_ms"`
	Explicit     bool         `json:"explicit"`
	Popularity   int          `json:"popularity"`
	Artists      []Artist     `json:"artists"`
	Album        Album        `json:"album"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// ArtistNames joins the credited artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// URL returns the public track link, derived from the id when upstream omitted it.
func (t Track) URL() string {
	if t.ExternalURLs.Spotify != "" {
		return t.ExternalURLs.Spotify
	}
	if t.ID == "" {
		return ""
	}
	return trackURLPrefix + t.ID
}

// SearchResult is one page of track search results.
//
// Limit and Offset are the values actually sent upstream after clamping.
type SearchResult struct {
	Tracks []Track
	Total  int
	Limit  int
	Offset int
}

// TrackWithFeatures pairs a track with its embedding. Embedding is nil when upstream has no analysis.
type TrackWithFeatures struct {
	Track     Track
	Embedding *Embedding
}

// Metadata returns the flat description consumed downstream:
// spotify_id, title, artist, album and, when known, spotify_url.
func (t TrackWithFeatures) Metadata() map[string]string {
	m := map[string]string{
		"spotify_id": t.Track.ID,
		"title":      t.Track.Name,
		"artist":     t.Track.ArtistNames(),
		"album":      t.Track.Album.Name,
	}
	if u := t.Track.URL(); u != "" {
		m["spotify_url"] = u
	}
	return m
}

// ClampLimit bounds a page size to [MinLimit, MaxLimit].
func ClampLimit(limit int) int {
	return min(max(limit, MinLimit), MaxLimit)
}

// ClampOffset bounds a page offset to [0, MaxOffset].
func ClampOffset(offset int) int {
	return min(max(offset, 0), MaxOffset)
}
