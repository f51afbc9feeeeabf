package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksearch/internal/instrumentation"
	"github.com/desertthunder/tracksearch/internal/shared"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMargin  = 30 * time.Second
	DefaultTimeout = 10 * time.Second

	flightKey = "client_credentials"
)

// Source fetches a fresh token from the authorization server.
//
// [clientcredentials.Config] satisfies it.
type Source interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// State is a snapshot of the cache for diagnostics.
type State struct {
	Token       Token
	Stale       bool
	RefreshedAt time.Time
	LastError   error
}

type entry struct {
	tok         Token
	stale       bool
	refreshedAt time.Time
	err         error
}

// Cache holds the current bearer token and coalesces refreshes.
type Cache struct {
	source  Source
	margin  time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
	inst    *instrumentation.Instrumentation

	current atomic.Pointer[entry]
	group   singleflight.Group
}

// Option configures a [Cache].
type Option func(*Cache)

// WithMargin sets how long before expiry a token stops being handed out.
func WithMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithTimeout bounds each upstream token request.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithClock replaces [time.Now].
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(c *Cache) { c.inst = inst }
}

// New creates a cache that refreshes from source.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		margin:  DefaultMargin,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientCredentials creates a cache backed by the OAuth2 client-credentials grant at tokenURL.
//
// httpClient may be nil, in which case [http.DefaultClient] is used.
func NewClientCredentials(clientID, clientSecret, tokenURL string, httpClient *http.Client, opts ...Option) *Cache {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return New(&httpSource{cfg: cfg, client: httpClient}, opts...)
}

// httpSource pins the HTTP client used for token requests.
type httpSource struct {
	cfg    *clientcredentials.Config
	client *http.Client
}

func (s *httpSource) Token(ctx context.Context) (*oauth2.Token, error) {
	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}
	return s.cfg.Token(ctx)
}

// Token returns a token valid for at least the margin, refreshing when needed.
func (c *Cache) Token(ctx context.Context) (Token, error) {
	if e := c.current.Load(); e != nil && !e.stale && e.tok.ValidAt(c.now(), c.margin) {
		return e.tok, nil
	}
	return c.refresh(ctx, "")
}

// Refresh forces a refresh after upstream rejected the token rejected.
//
// When the cache already holds a different valid token, that token is returned without an
// upstream call. The rejected token is never returned again.
func (c *Cache) Refresh(ctx context.Context, rejected Token) (Token, error) {
	e := c.current.Load()
	if e != nil && !e.stale && e.tok.Value != rejected.Value && e.tok.ValidAt(c.now(), c.margin) {
		return e.tok, nil
	}
	if e != nil && !e.stale && e.tok.Value == rejected.Value {
		c.current.CompareAndSwap(e, &entry{tok: e.tok, stale: true, refreshedAt: e.refreshedAt})
	}
	return c.refresh(ctx, rejected.Value)
}

// Peek returns the cached state, including a stale or failed token, without refreshing.
func (c *Cache) Peek() State {
	e := c.current.Load()
	if e == nil {
		return State{}
	}
	return State{Token: e.tok, Stale: e.stale, RefreshedAt: e.refreshedAt, LastError: e.err}
}

// refresh joins or starts the shared refresh. A flight that started before rejected was marked
// stale may still hand it back, so a forced caller tries once more.
func (c *Cache) refresh(ctx context.Context, rejected string) (Token, error) {
	for attempt := 0; ; attempt++ {
		tok, err := c.await(ctx, rejected != "")
		if err != nil {
			return Token{}, err
		}
		if rejected == "" || tok.Value != rejected || attempt > 0 {
			return tok, nil
		}
		c.logger.Debug("shared refresh returned the rejected token, refreshing again")
	}
}

func (c *Cache) await(ctx context.Context, forced bool) (Token, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		if e := c.current.Load(); e != nil && !e.stale && e.tok.ValidAt(c.now(), c.margin) {
			return e.tok, nil
		}
		return c.fetch(context.WithoutCancel(ctx), forced)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Token{}, shared.NewError(shared.KindUpstreamTimeout, "auth.token", "gave up waiting for token refresh", ctx.Err())
		}
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// fetch performs the upstream token request and publishes the result.
func (c *Cache) fetch(ctx context.Context, forced bool) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.inst.Tracer("auth").Start(ctx, "auth.refresh")
	defer span.End()
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrTokenForced, forced))

	start := c.now()
	raw, err := c.source.Token(ctx)
	if err == nil && (raw == nil || raw.AccessToken == "") {
		err = errors.New("token endpoint returned an empty access token")
	}

	var tok Token
	if err == nil {
		tok = fromOAuth2(raw, start)
		if !tok.ValidAt(c.now(), c.margin) {
			err = fmt.Errorf("issued token expires at %s, inside the %s refresh margin", tok.ExpiresAt.UTC().Format(time.RFC3339), c.margin)
		}
	}

	if err != nil {
		err = c.classify(ctx, err)
		c.fail(err)
		c.inst.Metrics().RecordTokenRefresh(ctx, forced, false)
		instrumentation.RecordError(span, err)
		instrumentation.AddErrorKind(span, shared.KindOf(err).String())
		c.logger.Warn("token refresh failed", "forced", forced, "kind", shared.KindOf(err), "err", err)
		return Token{}, err
	}

	c.current.Store(&entry{tok: tok, refreshedAt: c.now()})
	c.inst.Metrics().RecordTokenRefresh(ctx, forced, true)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrTokenExpiresAt, tok.ExpiresAt.UTC().Format(time.RFC3339)))
	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("token refreshed", "forced", forced, "expires_at", tok.ExpiresAt)
	return tok, nil
}

// fail keeps the previous token for diagnostics and marks it unusable.
func (c *Cache) fail(err error) {
	prev := c.current.Load()
	next := &entry{stale: true, err: err}
	if prev != nil {
		next.tok = prev.tok
		next.refreshedAt = prev.refreshedAt
	}
	c.current.Store(next)
}

func (c *Cache) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return shared.NewError(shared.KindUpstreamTimeout, "auth.refresh", "token request timed out", err)
	}

	e := shared.NewError(shared.KindAuthFailure, "auth.refresh", "", err)
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		e.Status = re.Response.StatusCode
	}
	return e
}
