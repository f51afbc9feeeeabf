// Spotify Web API implementation of [CatalogAPI]
//
// Response shapes based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksearch/internal/auth"
	"github.com/desertthunder/tracksearch/internal/instrumentation"
	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/shared"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	DefaultSpotifyBaseURL  = "https://api.spotify.com/v1"
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultTrackBatchSize is the upstream ceiling for ids per /tracks call.
	DefaultTrackBatchSize = 50
	// DefaultFeatureBatchSize is the upstream ceiling for ids per /audio-features call.
	DefaultFeatureBatchSize = 100

	DefaultRequestTimeout = 10 * time.Second
)

type spotifyTracksPage struct {
	Items  []*models.Track `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type spotifySearchResponse struct {
	Tracks *spotifyTracksPage `json:"tracks"`
}

type spotifyTracksResponse struct {
	Tracks []*models.Track `json:"tracks"`
}

type spotifyFeaturesResponse struct {
	AudioFeatures []*models.AudioFeatures `json:"audio_features"`
}

type spotifyErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyClient calls the Web API with client-credentials tokens.
//
// Each call obtains a token from a [TokenProvider]. A 401 forces exactly one refresh and one resend.
type SpotifyClient struct {
	api        *APIService
	tokens     TokenProvider
	timeout    time.Duration
	trackBatch int
	limiter    *rate.Limiter
	logger     *log.Logger
	inst       *instrumentation.Instrumentation
	now        func() time.Time
}

// SpotifyOption configures a [SpotifyClient].
type SpotifyOption func(*SpotifyClient)

// WithHTTPClient sets the client used for API calls.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyClient) { s.api = NewAPIService(s.api.baseURL, c) }
}

// WithRequestTimeout bounds every upstream call.
func WithRequestTimeout(d time.Duration) SpotifyOption {
	return func(s *SpotifyClient) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTrackBatchSize sets the number of ids per /tracks call.
func WithTrackBatchSize(n int) SpotifyOption {
	return func(s *SpotifyClient) {
		if n > 0 {
			s.trackBatch = n
		}
	}
}

// WithRateLimit paces outbound calls to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyClient) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		} else {
			s.limiter = nil
		}
	}
}

func WithClientLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyClient) { s.logger = l }
}

func WithClientInstrumentation(inst *instrumentation.Instrumentation) SpotifyOption {
	return func(s *SpotifyClient) { s.inst = inst }
}

// NewSpotifyClient creates a client rooted at baseURL that authenticates through tokens.
func NewSpotifyClient(baseURL string, tokens TokenProvider, opts ...SpotifyOption) (*SpotifyClient, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%w: token provider", shared.ErrMissingArgument)
	}
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: api base url %q", shared.ErrInvalidConfig, baseURL)
		}
	}

	s := &SpotifyClient{
		api:        NewAPIService(baseURL, nil),
		tokens:     tokens,
		timeout:    DefaultRequestTimeout,
		trackBatch: DefaultTrackBatchSize,
		logger:     log.New(io.Discard),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search runs a track search. limit is clamped to [1,50] and offset to [0,1000]; the clamped
// values are echoed in the result.
func (s *SpotifyClient) Search(ctx context.Context, query string, limit, offset int) (*models.SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, shared.NewError(shared.KindInvalidInput, "search", "query must not be empty", nil)
	}
	limit, offset = models.ClampLimit(limit), models.ClampOffset(offset)

	params := url.Values{}
	params.Set("q", q)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var resp spotifySearchResponse
	if err := s.doRequest(ctx, "search", "/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return nil, shared.NewError(shared.KindUpstreamProtocol, "search", "response has no tracks page", nil)
	}

	return &models.SearchResult{
		Tracks: compactTracks(resp.Tracks.Items),
		Total:  resp.Tracks.Total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Tracks looks up ids in chunks of the track batch size. Unknown ids are dropped and the rest
// keep input order.
func (s *SpotifyClient) Tracks(ctx context.Context, ids []string) ([]models.Track, error) {
	tracks := make([]models.Track, 0, len(ids))
	for start := 0; start < len(ids); start += s.trackBatch {
		chunk := ids[start:min(start+s.trackBatch, len(ids))]

		params := url.Values{}
		params.Set("ids", strings.Join(chunk, ","))

		var resp spotifyTracksResponse
		if err := s.doRequest(ctx, "tracks", "/tracks", params, &resp); err != nil {
			return nil, err
		}
		if resp.Tracks == nil {
			return nil, shared.NewError(shared.KindUpstreamProtocol, "tracks", "response has no tracks array", nil)
		}
		tracks = append(tracks, compactTracks(resp.Tracks)...)
	}
	return tracks, nil
}

// AudioFeatures fetches features for one batch of ids in a single call.
func (s *SpotifyClient) AudioFeatures(ctx context.Context, ids []string) ([]*models.AudioFeatures, error) {
	if len(ids) == 0 {
		return []*models.AudioFeatures{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))

	var resp spotifyFeaturesResponse
	if err := s.doRequest(ctx, "audio_features", "/audio-features", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.AudioFeatures) != len(ids) {
		return nil, shared.NewError(shared.KindUpstreamProtocol, "audio_features",
			fmt.Sprintf("expected %d entries, got %d", len(ids), len(resp.AudioFeatures)), nil)
	}
	return resp.AudioFeatures, nil
}

// doRequest performs an authenticated GET and decodes a 2xx body into result.
//
// A 401 triggers one forced token refresh and one resend; a second 401 is an auth failure.
func (s *SpotifyClient) doRequest(ctx context.Context, op, endpoint string, params url.Values, result any) error {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := s.send(ctx, op, 1, endpoint, params, tok)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Debug("upstream rejected token, refreshing", "op", op)
		tok, err = s.tokens.Refresh(ctx, tok)
		if err != nil {
			return err
		}
		resp, err = s.send(ctx, op, 2, endpoint, params, tok)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return &shared.Error{Kind: shared.KindAuthFailure, Op: op, Msg: "upstream rejected a freshly issued token", Status: resp.StatusCode}
		}
	}

	if !resp.OK() {
		return s.statusError(ctx, op, resp)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return shared.NewError(shared.KindUpstreamProtocol, op, "failed to decode response", err)
		}
	}
	return nil
}

// send performs one paced, timed and traced upstream call.
func (s *SpotifyClient) send(ctx context.Context, op string, attempt int, endpoint string, params url.Values, tok auth.Token) (*APIResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.inst.Tracer("upstream").Start(ctx, "spotify."+op)
	defer span.End()
	instrumentation.AddUpstreamAttributes(span, op, attempt)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%s: %w", op, context.Canceled)
			}
			err = shared.NewError(shared.KindUpstreamTimeout, op, "request budget exhausted while pacing", err)
			instrumentation.RecordError(span, err)
			return nil, err
		}
	}

	start := time.Now()
	resp, err := s.api.Get(ctx, endpoint, params, tok.Value)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		s.inst.Metrics().RecordUpstreamRequest(ctx, op, 0, elapsed)
		err = s.transportError(ctx, op, err)
		instrumentation.RecordError(span, err)
		instrumentation.AddErrorKind(span, shared.KindOf(err).String())
		s.logger.Warn("upstream call failed", "op", op, "attempt", attempt, "err", err)
		return nil, err
	}

	s.inst.Metrics().RecordUpstreamRequest(ctx, op, resp.StatusCode, elapsed)
	instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrUpstreamStatus, resp.StatusCode))
	if resp.OK() {
		instrumentation.SetSpanSuccess(span)
	}
	s.logger.Debug("upstream call", "op", op, "attempt", attempt, "status", resp.StatusCode, "ms", elapsed)
	return resp, nil
}

// transportError classifies a failure that produced no response.
func (s *SpotifyClient) transportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return shared.NewError(shared.KindUpstreamTimeout, op, "upstream call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	return shared.NewError(shared.KindUpstream, op, "", err)
}

// statusError maps a non-2xx response other than a handled 401.
func (s *SpotifyClient) statusError(ctx context.Context, op string, resp *APIResponse) error {
	e := &shared.Error{Op: op, Status: resp.StatusCode, Msg: upstreamMessage(resp.Body)}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = shared.KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Headers, s.now())
		s.inst.Metrics().RecordRateLimited(ctx, op)
		s.logger.Warn("upstream rate limited", "op", op, "retry_after", e.RetryAfter)
	case resp.StatusCode == http.StatusGatewayTimeout:
		e.Kind = shared.KindUpstreamTimeout
	case resp.StatusCode == http.StatusBadRequest && op != "search":
		// id lookups with malformed ids come back as 400
		e.Kind = shared.KindInvalidInput
	default:
		e.Kind = shared.KindUpstream
	}
	return e
}

// upstreamMessage extracts the Web API error message, if the body carries one.
func upstreamMessage(body []byte) string {
	var er spotifyErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	return er.Error.Message
}

func compactTracks(items []*models.Track) []models.Track {
	out := make([]models.Track, 0, len(items))
	for _, t := range items {
		if t != nil && t.ID != "" {
			out = append(out, *t)
		}
	}
	return out
}
