package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/tracksearch/internal/models"
)

// FakeSpotify is an in-process stand-in for the accounts and Web API endpoints.
//
// It issues token-1, token-2, ... from /api/token and accepts only the latest one on /v1.
type FakeSpotify struct {
	Server *httptest.Server

	TokenCalls   atomic.Int32
	SearchCalls  atomic.Int32
	TrackCalls   atomic.Int32
	FeatureCalls atomic.Int32

	mu         sync.Mutex
	tracks     []models.Track
	features   map[string]*models.AudioFeatures
	current    string
	issued     int
	lifetime   int
	tokenFail  int
	rejectNext int
	retryAfter string
	status     int
	rawBody    string
	delay      func(path string, ids []string) time.Duration
}

// NewFakeSpotify starts a fake upstream. Close it with Server.Close.
func NewFakeSpotify() *FakeSpotify {
	f := &FakeSpotify{features: map[string]*models.AudioFeatures{}, lifetime: 3600}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", f.handleToken)
	mux.HandleFunc("/v1/search", f.guard(f.handleSearch))
	mux.HandleFunc("/v1/tracks", f.guard(f.handleTracks))
	mux.HandleFunc("/v1/audio-features", f.guard(f.handleFeatures))
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *FakeSpotify) Close() { f.Server.Close() }

// TokenURL is the client-credentials endpoint.
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/api/token" }

// APIBaseURL is the Web API root.
func (f *FakeSpotify) APIBaseURL() string { return f.Server.URL + "/v1" }

// AddTrack registers a track and, when features is non-nil, its audio analysis.
func (f *FakeSpotify) AddTrack(track models.Track, features *models.AudioFeatures) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, track)
	if features != nil {
		f.features[track.ID] = features
	}
}

// RejectNext makes the next n API calls answer 401 regardless of the token.
func (f *FakeSpotify) RejectNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectNext = n
}

// Revoke invalidates the current token so the next API call answers 401.
func (f *FakeSpotify) Revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = ""
}

// RateLimit makes API calls answer 429 with the given Retry-After header. Empty clears it.
func (f *FakeSpotify) RateLimit(retryAfter string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAfter = retryAfter
}

// Fail makes API calls answer status with body. Zero clears it.
func (f *FakeSpotify) Fail(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.rawBody = body
}

// Delay holds API responses for the returned duration.
func (f *FakeSpotify) Delay(fn func(path string, ids []string) time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = fn
}

// FailTokens makes the token endpoint answer status with an OAuth error body. Zero clears it.
func (f *FakeSpotify) FailTokens(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenFail = status
}

// SetTokenLifetime sets expires_in for issued tokens; zero omits it.
func (f *FakeSpotify) SetTokenLifetime(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lifetime = seconds
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	f.TokenCalls.Add(1)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, _, ok := r.BasicAuth(); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	f.mu.Lock()
	if f.tokenFail != 0 {
		status := f.tokenFail
		f.mu.Unlock()
		writeJSON(w, status, map[string]string{"error": "invalid_client", "error_description": "Invalid client secret"})
		return
	}
	f.issued++
	f.current = "token-" + strconv.Itoa(f.issued)
	body := map[string]any{"access_token": f.current, "token_type": "Bearer"}
	if f.lifetime > 0 {
		body["expires_in"] = f.lifetime
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, body)
}

// guard applies the scripted failures and the bearer check shared by every API route.
func (f *FakeSpotify) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/search":
			f.SearchCalls.Add(1)
		case "/v1/tracks":
			f.TrackCalls.Add(1)
		case "/v1/audio-features":
			f.FeatureCalls.Add(1)
		}

		f.mu.Lock()
		reject := f.rejectNext > 0
		if reject {
			f.rejectNext--
		}
		current := f.current
		retryAfter, status, rawBody, delay := f.retryAfter, f.status, f.rawBody, f.delay
		f.mu.Unlock()

		if delay != nil {
			if d := delay(r.URL.Path, splitIDs(r.URL.Query().Get("ids"))); d > 0 {
				select {
				case <-time.After(d):
				case <-r.Context().Done():
					return
				}
			}
		}

		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if reject || current == "" || bearer != current {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}})
			return
		}
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": map[string]any{"status": 429, "message": "API rate limit exceeded"}})
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(rawBody))
			return
		}
		next(w, r)
	}
}

func (f *FakeSpotify) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("type") != "track" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be track"})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	needle := strings.ToLower(q.Get("q"))

	f.mu.Lock()
	var matches []models.Track
	for _, t := range f.tracks {
		if strings.Contains(strings.ToLower(t.Name), needle) || strings.Contains(strings.ToLower(t.ArtistNames()), needle) {
			matches = append(matches, t)
		}
	}
	f.mu.Unlock()

	page := []models.Track{}
	if offset < len(matches) {
		page = matches[offset:min(offset+limit, len(matches))]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": map[string]any{"items": page, "total": len(matches), "limit": limit, "offset": offset},
	})
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	f.mu.Lock()
	out := make([]*models.Track, len(ids))
	for i, id := range ids {
		for _, t := range f.tracks {
			if t.ID == id {
				out[i] = &t
				break
			}
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (f *FakeSpotify) handleFeatures(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	f.mu.Lock()
	out := make([]*models.AudioFeatures, len(ids))
	for i, id := range ids {
		out[i] = f.features[id]
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"audio_features": out})
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encode fake response: %v", err))
	}
}

// SampleTrack builds a track with a predictable name, artist and album.
func SampleTrack(id string) models.Track {
	return models.Track{
		ID:           id,
		Name:         "Song " + id,
		URI:          "spotify:track:" + id,
		DurationMS:   180000,
		Artists:      []models.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
		Album:        models.Album{ID: "album-" + id, Name: "Album " + id},
		ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/track/" + id},
	}
}

// SampleFeatures builds non-empty audio features for id.
func SampleFeatures(id string) *models.AudioFeatures {
	return &models.AudioFeatures{
		ID:               id,
		Danceability:     0.5,
		Energy:           0.6,
		Key:              5,
		Loudness:         -6,
		Mode:             1,
		Speechiness:      0.05,
		Acousticness:     0.1,
		Instrumentalness: 0,
		Liveness:         0.2,
		Valence:          0.7,
		Tempo:            120,
		TimeSignature:    4,
	}
}
