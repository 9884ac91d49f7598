package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Album string `json:"album"`
	Year  string `json:"year"`
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backends returns a fresh instance of every backend kind.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	out := make(map[string]Backend)
	for _, kind := range []string{BackendMemory, BackendBadger, BackendBolt, BackendSQLite} {
		path := filepath.Join(dir, kind, "ma_cache")
		b, err := Open(kind, path, discardLogger())
		require.NoError(t, err, kind)
		t.Cleanup(func() { _ = b.Close() })
		out[kind] = b
	}
	return out
}

func newTestStore(b Backend) (*Store, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(b, DefaultTTL, discardLogger(), WithClock(c.Now)), c
}

func TestStore_PutGet(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, c := newTestStore(b)

			want := record{Album: "Déjà Vu", Year: "2002"}
			require.NoError(t, s.Put(ctx, "album:https://example.com/a/1", want))

			c.Advance(DefaultTTL - time.Minute)

			var got record
			found, err := s.Get(ctx, "album:https://example.com/a/1", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			s, _ := newTestStore(b)

			var got record
			found, err := s.Get(context.Background(), "band:nope", &got)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_GetExpiredPurges(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, c := newTestStore(b)

			require.NoError(t, s.Put(ctx, "search:band|album", record{Album: "x"}))
			c.Advance(DefaultTTL + time.Second)

			var got record
			found, err := s.Get(ctx, "search:band|album", &got)
			require.NoError(t, err)
			assert.False(t, found)

			_, err = b.Get(ctx, "search:band|album")
			assert.ErrorIs(t, err, ErrNotFound, "expired entry must be physically removed")
		})
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, c := newTestStore(b)

			require.NoError(t, s.Put(ctx, "band:x", record{Album: "old"}))
			c.Advance(DefaultTTL - time.Hour)
			require.NoError(t, s.Put(ctx, "band:x", record{Album: "new"}))
			c.Advance(2 * time.Hour)

			var got record
			found, err := s.Get(ctx, "band:x", &got)
			require.NoError(t, err)
			require.True(t, found, "overwrite refreshes the timestamp")
			assert.Equal(t, "new", got.Album)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestStore(b)

			require.NoError(t, s.Put(ctx, "album:x", record{}))
			require.NoError(t, s.Delete(ctx, "album:x"))
			require.NoError(t, s.Delete(ctx, "album:x"), "deleting a missing key is a no-op")

			found, err := s.Get(ctx, "album:x", &record{})
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_SweepRemovesExactlyExpired(t *testing.T) {
	for kind, b := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, c := newTestStore(b)

			for i := range 3 {
				require.NoError(t, s.Put(ctx, fmt.Sprintf("album:old-%d", i), record{}))
			}
			c.Advance(10 * 24 * time.Hour)
			for i := range 2 {
				require.NoError(t, s.Put(ctx, fmt.Sprintf("album:new-%d", i), record{}))
			}
			c.Advance(6 * 24 * time.Hour)

			removed, err := s.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, removed)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			for i := range 2 {
				found, err := s.Get(ctx, fmt.Sprintf("album:new-%d", i), &record{})
				require.NoError(t, err)
				assert.True(t, found)
			}
		})
	}
}

func TestStore_SweepTreatsUnreadableAsExpired(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, _ := newTestStore(b)

	require.NoError(t, b.Put(ctx, "album:legacy", []byte(`{"data": {"album": "x"}}`)))
	require.NoError(t, b.Put(ctx, "album:garbage", []byte(`not json`)))
	require.NoError(t, s.Put(ctx, "album:fresh", record{}))

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestStore_PersistedShape(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, _ := newTestStore(b)

	require.NoError(t, s.Put(ctx, "album:x", record{Album: "Café"}))

	raw, err := b.Get(ctx, "album:x")
	require.NoError(t, err)

	var shape map[string]any
	require.NoError(t, json.Unmarshal(raw, &shape))
	assert.Equal(t, "2024-05-01T12:00:00Z", shape["timestamp"])
	assert.Equal(t, map[string]any{"album": "Café", "year": ""}, shape["data"])
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ma_cache.bolt")

	b, err := Open(BackendBolt, path, discardLogger())
	require.NoError(t, err)
	s := New(b, DefaultTTL, discardLogger())
	require.NoError(t, s.Put(ctx, "band:x", record{Album: "kept"}))
	require.NoError(t, s.Close())

	b, err = Open(BackendBolt, path, discardLogger())
	require.NoError(t, err)
	s = New(b, DefaultTTL, discardLogger())
	defer s.Close()

	var got record
	found, err := s.Get(ctx, "band:x", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "kept", got.Album)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(NewMemoryBackend())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			key := fmt.Sprintf("album:%d", i%4)
			assert.NoError(t, s.Put(ctx, key, record{Album: key}))
			var got record
			_, err := s.Get(ctx, key, &got)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 0, s.locks.len(), "per-key locks are released")
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newTestStore(NewMemoryBackend())

	assert.ErrorIs(t, s.Put(ctx, "album:x", record{}), context.Canceled)
	_, err := s.Get(ctx, "album:x", &record{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "album_with_artist", Kind("album_with_artist:https://x/y"))
	assert.Equal(t, "search", Kind("search:a|b"))
	assert.Equal(t, "other", Kind("plain"))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir(), discardLogger())
	assert.Error(t, err)
}

func TestNew_DefaultTTL(t *testing.T) {
	s := New(NewMemoryBackend(), 0, nil)
	assert.Equal(t, 15*24*time.Hour, s.TTL())
}
