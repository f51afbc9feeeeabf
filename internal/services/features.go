package services

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultFeatureConcurrency is how many feature chunks may be in flight at once.
const DefaultFeatureConcurrency = 4

// FeatureFetcher turns track ids into embeddings, one upstream call per chunk.
type FeatureFetcher struct {
	source      FeatureSource
	batchSize   int
	concurrency int
	logger      *log.Logger
}

// NewFeatureFetcher creates a fetcher. Non-positive sizes fall back to the defaults.
func NewFeatureFetcher(source FeatureSource, batchSize, concurrency int, logger *log.Logger) *FeatureFetcher {
	if batchSize <= 0 {
		batchSize = DefaultFeatureBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultFeatureConcurrency
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &FeatureFetcher{source: source, batchSize: batchSize, concurrency: concurrency, logger: logger}
}

// Fetch returns one embedding per id, in input order. A nil entry means upstream has no
// analysis for that track. Duplicated ids are looked up as given.
//
// Chunks run concurrently; the first failing chunk cancels the rest and its error is returned.
func (f *FeatureFetcher) Fetch(ctx context.Context, ids []string) ([]*models.Embedding, error) {
	out := make([]*models.Embedding, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for start := 0; start < len(ids); start += f.batchSize {
		end := min(start+f.batchSize, len(ids))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			features, err := f.source.AudioFeatures(gctx, ids[start:end])
			if err != nil {
				return fmt.Errorf("audio features for ids[%d:%d]: %w", start, end, err)
			}
			if len(features) != end-start {
				return shared.NewError(shared.KindUpstreamProtocol, "audio_features",
					fmt.Sprintf("chunk ids[%d:%d] returned %d entries", start, end, len(features)), nil)
			}

			// chunks own disjoint ranges of out
			for i, feat := range features {
				out[start+i] = models.NewEmbedding(feat)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Warn("feature fetch failed", "ids", len(ids), "err", err)
		return nil, err
	}
	return out, nil
}
