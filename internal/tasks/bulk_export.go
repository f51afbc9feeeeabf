package tasks

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// Catalog looks tracks up by id with embeddings attached. [services.Catalog] satisfies it.
type Catalog interface {
	TracksWithFeatures(ctx context.Context, ids []string) ([]models.TrackWithFeatures, error)
}

// BulkOpts contains configuration for bulk embedding lookups.
type BulkOpts struct {
	BatchSize  int     // Ids per catalog call (default: services.DefaultMaxIDs)
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Batches started per second (default: 5)
}

// BatchFailure records a batch that could not be looked up.
type BatchFailure struct {
	Index int      `json:"index"`
	IDs   []string `json:"ids"`
	Error string   `json:"error"`
}

// BulkResult is the outcome of [Engine.Embed]. Tracks keep input order; unknown ids are absent.
type BulkResult struct {
	Requested int                        `json:"requested"`
	Found     int                        `json:"found"`
	Embedded  int                        `json:"embedded"`
	Tracks    []models.TrackWithFeatures `json:"-"`
	Failures  []BatchFailure             `json:"failures,omitempty"`
}

// Engine runs bulk jobs against a [Catalog].
type Engine struct {
	catalog Catalog
	logger  *log.Logger
}

// NewEngine creates an engine. A nil logger discards.
func NewEngine(catalog Catalog, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{catalog: catalog, logger: logger}
}

type batchJob struct {
	index int
	ids   []string
}

type batchResult struct {
	index  int
	ids    []string
	tracks []models.TrackWithFeatures
	err    error
}

// Embed looks up every id with its embedding, in batches on a worker pool.
//
// Duplicate ids are looked up once. Failed batches are recorded and the rest continue; an error is
// returned only when ctx ends or every batch failed.
func (e *Engine) Embed(ctx context.Context, ids []string, opts BulkOpts, prog chan<- ProgressUpdate) (*BulkResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = services.DefaultMaxIDs
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	ids = dedupe(ids)
	result := &BulkResult{Requested: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	batches := chunk(ids, opts.BatchSize)
	sendProgress(prog, planUpdate(len(ids), len(batches)))
	e.logger.Debug("bulk embed", "ids", len(ids), "batches", len(batches), "workers", opts.NumWorkers)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan batchJob)
	results := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, limiter, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, b := range batches {
			select {
			case jobs <- batchJob{index: i, ids: b}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][]models.TrackWithFeatures, len(batches))
	completed := 0
	for res := range results {
		completed++
		if res.err != nil {
			result.Failures = append(result.Failures, BatchFailure{Index: res.index, IDs: res.ids, Error: res.err.Error()})
			e.logger.Warn("batch failed", "batch", res.index, "err", res.err)
			sendProgress(prog, batchFailedUpdate(completed, len(batches), res))
			continue
		}
		ordered[res.index] = res.tracks
		sendProgress(prog, batchCompletedUpdate(completed, len(batches), res))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, tracks := range ordered {
		for _, t := range tracks {
			result.Tracks = append(result.Tracks, t)
			if t.Embedding != nil {
				result.Embedded++
			}
		}
	}
	result.Found = len(result.Tracks)
	slices.SortFunc(result.Failures, func(a, b BatchFailure) int { return cmp.Compare(a.Index, b.Index) })
	sendProgress(prog, completeUpdate(len(batches), result))

	if len(result.Failures) == len(batches) {
		return result, fmt.Errorf("all %d batches failed: %s", len(batches), result.Failures[0].Error)
	}
	return result, nil
}

// worker is a worker goroutine that looks batches up from the jobs channel.
func (e *Engine) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan batchJob,
	results chan<- batchResult,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- batchResult{index: job.index, ids: job.ids, err: err}
			continue
		}

		tracks, err := e.catalog.TracksWithFeatures(ctx, job.ids)
		results <- batchResult{index: job.index, ids: job.ids, tracks: tracks, err: err}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
