package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/desertthunder/tracksearch/internal/auth"
	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
	tu "github.com/desertthunder/tracksearch/internal/testing"
)

func newFakeCatalog(t *testing.T, ids ...string) (*tu.FakeSpotify, *services.Catalog) {
	t.Helper()
	fake := tu.NewFakeSpotify()
	t.Cleanup(fake.Close)
	for _, id := range ids {
		fake.AddTrack(tu.SampleTrack(id), tu.SampleFeatures(id))
	}

	tokens := auth.NewClientCredentials("id", "secret", fake.TokenURL(), fake.Server.Client())
	client, err := services.NewSpotifyClient(fake.APIBaseURL(), tokens, services.WithHTTPClient(fake.Server.Client()))
	if err != nil {
		t.Fatalf("NewSpotifyClient: %v", err)
	}
	return fake, services.NewCatalog(client, services.NewFeatureFetcher(client, 2, 2, nil), 0, nil)
}

func TestEndToEnd(t *testing.T) {
	t.Run("Search With Features After Revoked Token", func(t *testing.T) {
		fake, cat := newFakeCatalog(t, "a1", "a2", "a3")
		h := newTestServer(cat).Handler()

		if rec := get(t, h, "/api/v1/search?q=song&limit=2"); rec.Code != http.StatusOK {
			t.Fatalf("warm-up: expected 200, got %d", rec.Code)
		}
		fake.Revoke()

		rec := get(t, h, "/api/v1/search?q=song&limit=0&include_features=true")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		body := decode[SearchResponse](t, rec)
		if body.Limit != models.MinLimit || len(body.Tracks) != 1 || body.Total != 3 {
			t.Errorf("unexpected envelope %+v", body)
		}
		if len(body.Tracks[0].Embedding) != models.EmbeddingDims {
			t.Error("expected an embedding")
		}
		if got := fake.TokenCalls.Load(); got != 2 {
			t.Errorf("expected 2 token calls, got %d", got)
		}
	})

	t.Run("Rate Limit Surfaces Retry-After", func(t *testing.T) {
		fake, cat := newFakeCatalog(t, "a1")
		fake.RateLimit("7")
		rec := get(t, newTestServer(cat).Handler(), "/api/v1/search?q=song")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "7" {
			t.Errorf("expected Retry-After 7, got %q", rec.Header().Get("Retry-After"))
		}
	})

	t.Run("Unknown IDs Dropped", func(t *testing.T) {
		_, cat := newFakeCatalog(t, "a1", "a2")
		rec := get(t, newTestServer(cat).Handler(), "/api/v1/tracks/with-features?ids=a2,missing,a1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		body := decode[SearchResponse](t, rec)
		if len(body.Tracks) != 2 || body.Tracks[0].ID != "a2" || body.Tracks[1].ID != "a1" || body.Total != 2 {
			t.Errorf("unexpected envelope %+v", body)
		}
	})
}

func TestServe(t *testing.T) {
	_, cat := newFakeCatalog(t, "a1")
	cfg := shared.ServerConfig{
		Host:              "127.0.0.1",
		ReadHeaderTimeout: shared.Duration{Duration: time.Second},
		ShutdownTimeout:   shared.Duration{Duration: 2 * time.Second},
	}
	srv := New(cfg, cat, nil, nil)

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, httpLn, grpcLn) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", httpLn.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	conn, err := grpc.NewClient(grpcLn.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	defer conn.Close()
	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	out, err := NewSpotifySearchClient(conn).GetTracksWithFeatures(rctx, &TracksRequest{TrackIDs: []string{"a1"}})
	if err != nil {
		t.Fatalf("GetTracksWithFeatures: %v", err)
	}
	if len(out.Tracks) != 1 || out.Tracks[0].ID != "a1" {
		t.Errorf("unexpected response %+v", out)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
