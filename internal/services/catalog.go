package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// DefaultMaxIDs caps the ids accepted by [Catalog.TracksWithFeatures].
const DefaultMaxIDs = 100

// SearchParams describes a track search.
type SearchParams struct {
	Query           string
	Limit           int
	Offset          int
	IncludeFeatures bool
}

// TrackPage is a page of tracks with optional embeddings.
type TrackPage struct {
	Tracks []models.TrackWithFeatures
	Total  int
	Limit  int
	Offset int
}

// Catalog combines catalog lookups with embedding retrieval for the transports.
type Catalog struct {
	api      CatalogAPI
	features *FeatureFetcher
	maxIDs   int
	logger   *log.Logger
}

// NewCatalog builds the facade. maxIDs <= 0 uses [DefaultMaxIDs].
func NewCatalog(api CatalogAPI, features *FeatureFetcher, maxIDs int, logger *log.Logger) *Catalog {
	if maxIDs <= 0 {
		maxIDs = DefaultMaxIDs
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Catalog{api: api, features: features, maxIDs: maxIDs, logger: logger}
}

// Search runs a track search; when p.IncludeFeatures is set every result carries its embedding.
func (c *Catalog) Search(ctx context.Context, p SearchParams) (*TrackPage, error) {
	result, err := c.api.Search(ctx, p.Query, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	page := &TrackPage{
		Tracks: make([]models.TrackWithFeatures, len(result.Tracks)),
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}
	for i, t := range result.Tracks {
		page.Tracks[i].Track = t
	}

	if p.IncludeFeatures {
		if err := c.attachEmbeddings(ctx, page.Tracks); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// TracksWithFeatures looks up ids and attaches embeddings. Unknown ids are dropped; the rest keep
// input order.
func (c *Catalog) TracksWithFeatures(ctx context.Context, ids []string) ([]models.TrackWithFeatures, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil, shared.NewError(shared.KindInvalidInput, "tracks_with_features", "at least one track id is required", nil)
	}
	if len(cleaned) > c.maxIDs {
		return nil, shared.NewError(shared.KindInvalidInput, "tracks_with_features",
			fmt.Sprintf("at most %d track ids are allowed, got %d", c.maxIDs, len(cleaned)), nil)
	}

	tracks, err := c.api.Tracks(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	out := make([]models.TrackWithFeatures, len(tracks))
	for i, t := range tracks {
		out[i].Track = t
	}
	if err := c.attachEmbeddings(ctx, out); err != nil {
		return nil, err
	}

	c.logger.Debug("tracks with features", "requested", len(cleaned), "found", len(out))
	return out, nil
}

func (c *Catalog) attachEmbeddings(ctx context.Context, tracks []models.TrackWithFeatures) error {
	if len(tracks) == 0 {
		return nil
	}
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.Track.ID
	}

	embeddings, err := c.features.Fetch(ctx, ids)
	if err != nil {
		return err
	}
	for i := range tracks {
		tracks[i].Embedding = embeddings[i]
	}
	return nil
}
