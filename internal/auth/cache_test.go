package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tracksearch/internal/shared"
	"golang.org/x/oauth2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSource issues tok-1, tok-2, ... each living for lifetime on the fake clock.
type fakeSource struct {
	clock    *fakeClock
	lifetime time.Duration
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}

	mu  sync.Mutex
	err error
}

func newFakeSource(clock *fakeClock) *fakeSource {
	return &fakeSource{clock: clock, lifetime: time.Hour}
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) Token(ctx context.Context) (*oauth2.Token, error) {
	n := s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: fmt.Sprintf("tok-%d", n),
		TokenType:   "Bearer",
		Expiry:      s.clock.Now().Add(s.lifetime),
	}, nil
}

func TestToken(t *testing.T) {
	t.Run("ValidAt", func(t *testing.T) {
		now := time.Now()
		tc := []struct {
			name string
			tok  Token
			want bool
		}{
			{"empty", Token{}, false},
			{"well before expiry", Token{Value: "a", ExpiresAt: now.Add(time.Hour)}, true},
			{"inside margin", Token{Value: "a", ExpiresAt: now.Add(10 * time.Second)}, false},
			{"exactly at margin", Token{Value: "a", ExpiresAt: now.Add(30 * time.Second)}, false},
			{"expired", Token{Value: "a", ExpiresAt: now.Add(-time.Second)}, false},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.tok.ValidAt(now, 30*time.Second); got != tt.want {
					t.Errorf("ValidAt = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("String Hides Value", func(t *testing.T) {
		tok := Token{Value: "secret", ExpiresAt: time.Now()}
		if s := tok.String(); s == "" || contains(s, "secret") {
			t.Errorf("String() leaked credential: %q", s)
		}
	})

	t.Run("Missing Expiry Assumes One Hour", func(t *testing.T) {
		now := time.Now()
		tok := fromOAuth2(&oauth2.Token{AccessToken: "a"}, now)
		if !tok.ExpiresAt.Equal(now.Add(DefaultLifetime)) {
			t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(DefaultLifetime))
		}
	})
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestCache(t *testing.T) {
	t.Run("Caches Until Margin", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))

		first, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		clock.Advance(59 * time.Minute)
		second, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if first != second || src.calls.Load() != 1 {
			t.Fatalf("expected cached token, got %v then %v after %d calls", first, second, src.calls.Load())
		}

		clock.Advance(31 * time.Second)
		third, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if third.Value != "tok-2" || src.calls.Load() != 2 {
			t.Errorf("expected refresh inside margin, got %v after %d calls", third, src.calls.Load())
		}
	})

	t.Run("Returned Token Always Outlives Margin", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		src.lifetime = 2 * time.Minute
		margin := 30 * time.Second
		c := New(src, WithClock(clock.Now), WithMargin(margin))

		steps := []time.Duration{0, time.Second, 29 * time.Second, 59 * time.Second, time.Minute, 31 * time.Second, 3 * time.Hour, 0, 89 * time.Second, 500 * time.Millisecond}
		for i, step := range steps {
			clock.Advance(step)
			tok, err := c.Token(context.Background())
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if !clock.Now().Add(margin).Before(tok.ExpiresAt) {
				t.Fatalf("step %d: token expiring %v returned at %v", i, tok.ExpiresAt, clock.Now())
			}
		}
	})

	t.Run("Concurrent Callers Share One Refresh", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		src.release = make(chan struct{})
		c := New(src, WithClock(clock.Now))

		const callers = 50
		var wg sync.WaitGroup
		results := make([]Token, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = c.Token(context.Background())
			}(i)
		}

		time.Sleep(20 * time.Millisecond)
		close(src.release)
		wg.Wait()

		if n := src.calls.Load(); n != 1 {
			t.Fatalf("expected 1 upstream token request, got %d", n)
		}
		for i := range callers {
			if errs[i] != nil || results[i].Value != "tok-1" {
				t.Errorf("caller %d: got %v, %v", i, results[i], errs[i])
			}
		}
	})

	t.Run("Refresh Failure Keeps Old Token For Diagnostics Only", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))

		old, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}

		clock.Advance(2 * time.Hour)
		src.setErr(errors.New("invalid_client"))

		_, err = c.Token(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}

		state := c.Peek()
		if state.Token != old || !state.Stale || state.LastError == nil {
			t.Errorf("expected stale old token with error, got %+v", state)
		}

		if _, err := c.Token(context.Background()); err == nil {
			t.Error("stale token must not be handed out")
		}

		src.setErr(nil)
		fresh, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token after recovery: %v", err)
		}
		if fresh == old {
			t.Error("expected a new token after recovery")
		}
		if c.Peek().Stale || c.Peek().LastError != nil {
			t.Error("expected clean state after successful refresh")
		}
	})

	t.Run("Token Shorter Than Margin Is Rejected", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		src.lifetime = 10 * time.Second
		c := New(src, WithClock(clock.Now))

		if _, err := c.Token(context.Background()); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Upstream Timeout", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		src.release = make(chan struct{})
		c := New(src, WithClock(clock.Now), WithTimeout(20*time.Millisecond))

		_, err := c.Token(context.Background())
		if shared.KindOf(err) != shared.KindUpstreamTimeout {
			t.Errorf("expected upstream timeout, got %v", err)
		}
	})

	t.Run("Cancelled Caller Stops Waiting Without Cancelling The Refresh", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		src.started = make(chan struct{}, 1)
		src.release = make(chan struct{})
		c := New(src, WithClock(clock.Now))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := c.Token(ctx)
			done <- err
		}()

		<-src.started
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		other := make(chan Token, 1)
		go func() {
			tok, _ := c.Token(context.Background())
			other <- tok
		}()
		time.Sleep(10 * time.Millisecond)
		close(src.release)

		if tok := <-other; tok.Value != "tok-1" {
			t.Errorf("expected shared refresh result tok-1, got %v", tok)
		}
		if n := src.calls.Load(); n != 1 {
			t.Errorf("expected 1 upstream token request, got %d", n)
		}
	})
}

func TestCacheRefresh(t *testing.T) {
	t.Run("Replaces Rejected Token", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))

		rejected, _ := c.Token(context.Background())
		tok, err := c.Refresh(context.Background(), rejected)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if tok == rejected || tok.Value != "tok-2" {
			t.Errorf("expected new token, got %v", tok)
		}

		again, _ := c.Token(context.Background())
		if again != tok {
			t.Errorf("expected cache to hold refreshed token, got %v", again)
		}
	})

	t.Run("Skips Upstream When Someone Already Refreshed", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))

		rejected, _ := c.Token(context.Background())
		newer, _ := c.Refresh(context.Background(), rejected)

		tok, err := c.Refresh(context.Background(), rejected)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if tok != newer {
			t.Errorf("expected %v, got %v", newer, tok)
		}
		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected 2 upstream token requests, got %d", n)
		}
	})

	t.Run("Concurrent Forced Refreshes Coalesce", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))
		rejected, _ := c.Token(context.Background())

		src.release = make(chan struct{})
		const callers = 10
		var wg sync.WaitGroup
		results := make([]Token, callers)
		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = c.Refresh(context.Background(), rejected)
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(src.release)
		wg.Wait()

		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected 2 upstream token requests, got %d", n)
		}
		for i, tok := range results {
			if tok.Value != "tok-2" {
				t.Errorf("caller %d got %v", i, tok)
			}
		}
	})

	t.Run("Rejected Token Is Never Returned After Failed Refresh", func(t *testing.T) {
		clock := newFakeClock()
		src := newFakeSource(clock)
		c := New(src, WithClock(clock.Now))
		rejected, _ := c.Token(context.Background())

		src.setErr(errors.New("server_error"))
		if _, err := c.Refresh(context.Background(), rejected); err == nil {
			t.Fatal("expected refresh error")
		}
		if _, err := c.Token(context.Background()); err == nil {
			t.Error("expected error instead of the rejected token")
		}
		if c.Peek().Token != rejected {
			t.Error("expected rejected token kept for diagnostics")
		}
	})
}

func TestNewClientCredentials(t *testing.T) {
	t.Run("Requests A Client-Credentials Grant", func(t *testing.T) {
		var gotGrant, gotUser, gotPass string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			gotGrant = r.PostForm.Get("grant_type")
			gotUser, gotPass, _ = r.BasicAuth()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		c := NewClientCredentials("id", "secret", srv.URL, srv.Client())
		tok, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok.Value != "abc" {
			t.Errorf("expected abc, got %q", tok.Value)
		}
		if gotGrant != "client_credentials" || gotUser != "id" || gotPass != "secret" {
			t.Errorf("unexpected request grant=%q user=%q pass=%q", gotGrant, gotUser, gotPass)
		}
		if d := time.Until(tok.ExpiresAt); d < 59*time.Minute || d > time.Hour+time.Minute {
			t.Errorf("unexpected lifetime %v", d)
		}
	})

	t.Run("Invalid Credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		}))
		defer srv.Close()

		c := NewClientCredentials("id", "wrong", srv.URL, srv.Client())
		_, err := c.Token(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		var se *shared.Error
		if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
			t.Errorf("expected status 401 on error, got %v", err)
		}
	})
}
