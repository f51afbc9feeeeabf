// package services implements the upstream catalog client, the batch feature fetcher and the
// catalog facade used by the transports
package services

import (
	"context"

	"github.com/desertthunder/tracksearch/internal/auth"
	"github.com/desertthunder/tracksearch/internal/models"
)

// TokenProvider hands out bearer tokens and replaces rejected ones. [auth.Cache] implements it.
type TokenProvider interface {
	// Token returns a currently valid token.
	Token(ctx context.Context) (auth.Token, error)

	// Refresh replaces rejected after upstream answered 401 with it.
	Refresh(ctx context.Context, rejected auth.Token) (auth.Token, error)
}

// FeatureSource fetches raw audio features for at most one upstream batch of ids.
type FeatureSource interface {
	// AudioFeatures returns one entry per id, in order, nil where upstream has no analysis.
	AudioFeatures(ctx context.Context, ids []string) ([]*models.AudioFeatures, error)
}

// CatalogAPI is the upstream surface the [Catalog] facade depends on. [SpotifyClient] implements it.
type CatalogAPI interface {
	FeatureSource

	// Search runs a track search with clamped paging.
	Search(ctx context.Context, query string, limit, offset int) (*models.SearchResult, error)

	// Tracks looks tracks up by id, dropping unknown ids and keeping input order.
	Tracks(ctx context.Context, ids []string) ([]models.Track, error)
}
