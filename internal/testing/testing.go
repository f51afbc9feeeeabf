// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tracksearch/internal/auth"
)

// StaticTokens is a token provider double that issues tok-1, tok-2, ... on each refresh.
type StaticTokens struct {
	mu        sync.Mutex
	current   auth.Token
	seq       int
	Refreshes int
	Err       error
}

func (s *StaticTokens) Token(ctx context.Context) (auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return auth.Token{}, s.Err
	}
	if s.current.IsZero() {
		s.next()
	}
	return s.current, nil
}

func (s *StaticTokens) Refresh(ctx context.Context, rejected auth.Token) (auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return auth.Token{}, s.Err
	}
	s.Refreshes++
	if s.current == rejected {
		s.next()
	}
	return s.current, nil
}

func (s *StaticTokens) next() {
	s.seq++
	s.current = auth.Token{Value: "tok-" + strconv.Itoa(s.seq), ExpiresAt: time.Now().Add(time.Hour)}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
