package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/maproxy/maproxy/internal/browser"
	domainerrors "github.com/maproxy/maproxy/internal/errors"
	"github.com/maproxy/maproxy/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetadata records calls and returns canned values.
type fakeMetadata struct {
	mu    sync.Mutex
	calls []string
	args  [][]string

	err        error
	album      *extract.Album
	artist     *extract.Artist
	combined   *extract.AlbumWithArtist
	albumRows  *extract.SearchResults[extract.AlbumSearchRow]
	artistRows *extract.SearchResults[extract.ArtistSearchRow]

	status     browser.Status
	ready      bool
	entries    int
	entriesErr error
	swept      int
	closeErr   error
}

func (f *fakeMetadata) record(name string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
}

func (f *fakeMetadata) SearchAlbums(_ context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error) {
	f.record("SearchAlbums", artist, album)
	return f.albumRows, f.err
}

func (f *fakeMetadata) SearchAlbumsFull(_ context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error) {
	f.record("SearchAlbumsFull", artist, album)
	return f.albumRows, f.err
}

func (f *fakeMetadata) SearchArtists(_ context.Context, artist string) (*extract.SearchResults[extract.ArtistSearchRow], error) {
	f.record("SearchArtists", artist)
	return f.artistRows, f.err
}

func (f *fakeMetadata) GetAlbum(_ context.Context, url string) (*extract.Album, error) {
	f.record("GetAlbum", url)
	return f.album, f.err
}

func (f *fakeMetadata) GetAlbumWithArtist(_ context.Context, url string) (*extract.AlbumWithArtist, error) {
	f.record("GetAlbumWithArtist", url)
	return f.combined, f.err
}

func (f *fakeMetadata) GetArtist(_ context.Context, url string) (*extract.Artist, error) {
	f.record("GetArtist", url)
	return f.artist, f.err
}

func (f *fakeMetadata) InvalidateCache(_ context.Context, key string) error {
	f.record("InvalidateCache", key)
	return f.err
}

func (f *fakeMetadata) SweepCache(context.Context) (int, error) {
	f.record("SweepCache")
	return f.swept, f.err
}

func (f *fakeMetadata) CacheEntries(context.Context) (int, error) {
	return f.entries, f.entriesErr
}

func (f *fakeMetadata) SessionStatus() browser.Status { return f.status }

func (f *fakeMetadata) CloseSession() error {
	f.record("CloseSession")
	return f.closeErr
}

func (f *fakeMetadata) Ready() bool { return f.ready }

func newTestServer(t *testing.T, md *fakeMetadata) *Server {
	t.Helper()
	return NewServer(md, Config{Version: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestTaggingRoutes_Dispatch(t *testing.T) {
	tests := []struct {
		target   string
		wantCall string
		wantArgs []string
	}{
		{"/search?artist=Ulver&album=Bergtatt", "SearchAlbums", []string{"Ulver", "Bergtatt"}},
		{"/search_full?album=Bergtatt", "SearchAlbumsFull", []string{"", "Bergtatt"}},
		{"/search_artist?artist=Ved%20Buens%20Ende", "SearchArtists", []string{"Ved Buens Ende"}},
		{"/album?url=https%3A%2F%2Fma%2Falbums%2F1", "GetAlbum", []string{"https://ma/albums/1"}},
		{"/album_full?url=https%3A%2F%2Fma%2Falbums%2F1", "GetAlbumWithArtist", []string{"https://ma/albums/1"}},
		{"/artist_info?url=https%3A%2F%2Fma%2Fbands%2F2", "GetArtist", []string{"https://ma/bands/2"}},
		{"/search?artist=first&artist=second", "SearchAlbums", []string{"first", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			md := &fakeMetadata{}
			w := get(t, newTestServer(t, md), tt.target)

			assert.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, []string{tt.wantCall}, md.calls)
			assert.Equal(t, tt.wantArgs, md.args[0])
		})
	}
}

func TestTaggingRoutes_Body(t *testing.T) {
	md := &fakeMetadata{
		album: &extract.Album{Title: "Nattens madrigal", Artist: "Ulver", Label: "Century Media", Tracks: []extract.Track{}},
		albumRows: &extract.SearchResults[extract.AlbumSearchRow]{Results: []extract.AlbumSearchRow{
			{Artist: "Dødheimsgard", Album: "Satanic Art", URL: "http://localhost:5000/album?url=x%26y"},
		}},
	}
	s := newTestServer(t, md)

	w := get(t, s, "/album?url=u")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	var album map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &album))
	assert.Equal(t, "Nattens madrigal", album["album"])
	assert.Equal(t, "Century Media", album["publisher"])
	assert.Equal(t, "", album["catalog"], "empty fields are present, not null")
	assert.Equal(t, []any{}, album["tracks"])

	w = get(t, s, "/search?artist=x")
	assert.Contains(t, w.Body.String(), `"artist":"Dødheimsgard"`, "non-ASCII is written raw")
	assert.Contains(t, w.Body.String(), `"metal_archives_album_url":"http://localhost:5000/album?url=x%26y"`)
	assert.Contains(t, w.Body.String(), `{"results":[`)
}

func TestTaggingRoutes_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing url", domainerrors.MissingParameter("Missing parameter: 'url'"), "Missing parameter: 'url'"},
		{"capture", domainerrors.CaptureFailed("ajax-advanced/searching/albums"), "Couldn't capture AJAX response"},
		{"upstream down", domainerrors.UpstreamUnavailable(errors.New("circuit breaker is open")), "upstream temporarily unavailable: circuit breaker is open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, newTestServer(t, &fakeMetadata{err: tt.err}), "/album")

			assert.Equal(t, http.StatusOK, w.Code, "tagging routes always answer 200")
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, w.Body.String())
		})
	}
}

func TestInvalidPathAndFavicon(t *testing.T) {
	md := &fakeMetadata{}
	s := newTestServer(t, md)

	for _, target := range []string{"/", "/albums", "/search/extra"} {
		w := get(t, s, target)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.JSONEq(t, `{"error":"Invalid Path"}`, w.Body.String(), target)
	}

	req := httptest.NewRequest(http.MethodPost, "/album?url=x", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.JSONEq(t, `{"error":"Invalid Path"}`, w.Body.String())

	w = get(t, s, "/favicon.ico")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, md.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(t, newTestServer(t, &fakeMetadata{}), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		md         *fakeMetadata
		wantStatus string
	}{
		{"ready", &fakeMetadata{ready: true, entries: 3}, "healthy"},
		{"preload failed", &fakeMetadata{ready: false}, "degraded"},
		{"cache down", &fakeMetadata{ready: true, entriesErr: errors.New("badger closed")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := humatest.Wrap(t, newTestServer(t, tt.md).api)

			resp := api.Get("/api/v1/health")
			require.Equal(t, http.StatusOK, resp.Code)

			var health HealthResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Contains(t, health.Components, "cache")
			assert.Contains(t, health.Components, "browser")
			assert.Contains(t, health.Components, "upstream")
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	md := &fakeMetadata{status: browser.Status{
		Active:    true,
		SessionID: "ses-abc",
		StartedAt: started,
		LastUsed:  started.Add(time.Minute),
		IdleFor:   90 * time.Second,
	}}
	api := humatest.Wrap(t, newTestServer(t, md).api)

	resp := api.Get("/api/v1/session")
	require.Equal(t, http.StatusOK, resp.Code)

	var session SessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	assert.True(t, session.Active)
	assert.Equal(t, "ses-abc", session.SessionID)
	require.NotNil(t, session.StartedAt)
	assert.True(t, started.Equal(*session.StartedAt))
	assert.EqualValues(t, 90, session.IdleSeconds)

	md.closeErr = errors.New("browser already gone")
	resp = api.Delete("/api/v1/session")
	assert.Equal(t, http.StatusNoContent, resp.Code, "close errors are logged, not reported")
	assert.Contains(t, md.calls, "CloseSession")
}

func TestCacheRoutes(t *testing.T) {
	md := &fakeMetadata{swept: 4}
	api := humatest.Wrap(t, newTestServer(t, md).api)

	resp := api.Delete("/api/v1/cache?key=album:https%3A%2F%2Fma%2Falbums%2F1")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, []string{"album:https://ma/albums/1"}, md.args[0])

	resp = api.Post("/api/v1/cache/sweep")
	require.Equal(t, http.StatusOK, resp.Code)
	var sweep SweepResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sweep))
	assert.Equal(t, 4, sweep.Removed)

	resp = api.Delete("/api/v1/cache")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "key is required")
}

func TestCacheRoutes_DomainError(t *testing.T) {
	md := &fakeMetadata{err: domainerrors.Wrap(errors.New("disk I/O"), domainerrors.CodeInternal, "sweep cache")}
	api := humatest.Wrap(t, newTestServer(t, md).api)

	resp := api.Post("/api/v1/cache/sweep")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "INTERNAL", apiErr.Code)
	assert.Equal(t, "sweep cache: disk I/O", apiErr.Message)
}
