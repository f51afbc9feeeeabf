package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// ArtistResponse is an artist in the public track shape.
type ArtistResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumResponse is an album in the public track shape.
type AlbumResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// TrackResponse is the public track shape. Embedding is omitted when the track has none.
type TrackResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	URI        string            `json:"uri"`
	DurationMS int               `json:"duration_ms"`
	Explicit   bool              `json:"explicit"`
	Artists    []ArtistResponse  `json:"artists"`
	Album      AlbumResponse     `json:"album"`
	SpotifyURL string            `json:"spotify_url,omitempty"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

// SearchResponse is the envelope shared by both catalog routes.
type SearchResponse struct {
	Tracks []TrackResponse `json:"tracks"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// NewTrackResponse converts a catalog track.
func NewTrackResponse(t models.TrackWithFeatures) TrackResponse {
	artists := make([]ArtistResponse, len(t.Track.Artists))
	for i, a := range t.Track.Artists {
		artists[i] = ArtistResponse{ID: a.ID, Name: a.Name}
	}
	return TrackResponse{
		ID:         t.Track.ID,
		Name:       t.Track.Name,
		URI:        t.Track.URI,
		DurationMS: t.Track.DurationMS,
		Explicit:   t.Track.Explicit,
		Artists:    artists,
		Album: AlbumResponse{
			ID:       t.Track.Album.ID,
			Name:     t.Track.Album.Name,
			ImageURL: t.Track.Album.ImageURL(),
		},
		SpotifyURL: t.Track.URL(),
		Embedding:  t.Embedding.Slice(),
		Metadata:   t.Metadata(),
	}
}

func newSearchResponse(tracks []models.TrackWithFeatures, total, limit, offset int) SearchResponse {
	out := SearchResponse{Tracks: make([]TrackResponse, len(tracks)), Total: total, Limit: limit, Offset: offset}
	for i, t := range tracks {
		out.Tracks[i] = NewTrackResponse(t)
	}
	return out
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APIHandler serves the catalog routes.
type APIHandler struct {
	catalog Catalog
	logger  *log.Logger
}

func NewAPIHandler(catalog Catalog, logger *log.Logger) *APIHandler {
	return &APIHandler{catalog: catalog, logger: logger}
}

// Search handles GET /api/v1/search?q=&limit=&offset=&include_features=.
func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.catalog.Search(r.Context(), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponse(page.Tracks, page.Total, page.Limit, page.Offset))
}

// TracksWithFeatures handles GET /api/v1/tracks/with-features?ids=a,b.
func (h *APIHandler) TracksWithFeatures(w http.ResponseWriter, r *http.Request) {
	ids := shared.SplitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		h.fail(w, r, shared.NewError(shared.KindInvalidInput, "tracks_with_features", "ids query parameter is required", nil))
		return
	}

	tracks, err := h.catalog.TracksWithFeatures(r.Context(), ids)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponse(tracks, len(tracks), len(tracks), 0))
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "request_id", RequestIDFrom(r.Context()), "path", r.URL.Path, "err", err)
	} else {
		h.logger.Debug("request rejected", "request_id", RequestIDFrom(r.Context()), "path", r.URL.Path, "err", err)
	}
	writeError(w, err)
}

func parseSearchParams(r *http.Request) (services.SearchParams, error) {
	q := r.URL.Query()
	p := services.SearchParams{
		Query: strings.TrimSpace(q.Get("q")),
		Limit: models.DefaultLimit,
	}
	if p.Query == "" {
		return p, shared.NewError(shared.KindInvalidInput, "search", "q query parameter is required", nil)
	}

	var err error
	if p.Limit, err = intParam(q.Get("limit"), models.DefaultLimit, "limit"); err != nil {
		return p, err
	}
	if p.Offset, err = intParam(q.Get("offset"), 0, "offset"); err != nil {
		return p, err
	}
	if raw := q.Get("include_features"); raw != "" {
		if p.IncludeFeatures, err = strconv.ParseBool(raw); err != nil {
			return p, shared.NewError(shared.KindInvalidInput, "search", "include_features must be a boolean", nil)
		}
	}
	return p, nil
}

func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.NewError(shared.KindInvalidInput, "search", name+" must be an integer", nil)
	}
	return n, nil
}
