// Package service implements the fetch orchestrator: every tagging request
// is answered from the cache when possible and otherwise scraped through the
// shared browser session, extracted, and written back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maproxy/maproxy/internal/browser"
	"github.com/maproxy/maproxy/internal/cache"
	"github.com/maproxy/maproxy/internal/debugdump"
	domainerrors "github.com/maproxy/maproxy/internal/errors"
	"github.com/maproxy/maproxy/internal/extract"
	"github.com/maproxy/maproxy/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

// Messages returned to the tagging client for missing inputs.
const (
	MsgMissingURL        = "Missing parameter: 'url'"
	MsgMissingSearch     = "Missing required values: 'artist' or 'album'"
	MsgMissingArtist     = "Missing required value: 'artist'"
	MsgMissingKey        = "Missing parameter: 'key'"
	MsgMissingArtistLink = "Artist's URL not found on album's data"
)

// Operation names, used as cache key prefixes, metric labels and debug dump kinds.
const (
	OpSearch          = "search"
	OpSearchFull      = "search_full"
	OpSearchArtist    = "search_artist"
	OpAlbum           = "album"
	OpBand            = "band"
	OpAlbumWithArtist = "album_with_artist"
)

// ErrChallenge means the site answered with an anti-bot interstitial.
var ErrChallenge = errors.New("anti-bot challenge page served")

// Session is the browser session operations run on.
type Session interface {
	Page(ctx context.Context, fresh bool) (browser.Page, error)
	Close() error
	Status() browser.Status
}

// Limiter paces navigations per upstream host.
type Limiter interface {
	WaitURL(ctx context.Context, rawURL string) error
}

// Config tunes upstream access.
type Config struct {
	BaseURL         string // scraped site, e.g. https://www.metal-archives.com
	PublicURL       string // this proxy as seen by the tagging client
	ScrapeTimeout   time.Duration
	PreloadTimeout  time.Duration
	SettleDelay     time.Duration
	PreloadRetries  int
	PreloadBackoff  time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.metal-archives.com"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost:5000"
	}
	if c.ScrapeTimeout <= 0 {
		c.ScrapeTimeout = 60 * time.Second
	}
	if c.PreloadTimeout <= 0 {
		c.PreloadTimeout = 10 * time.Second
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.PreloadRetries <= 0 {
		c.PreloadRetries = 3
	}
	if c.PreloadBackoff < 0 {
		c.PreloadBackoff = 0
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 2 * time.Minute
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// MetadataService orchestrates scraping with caching.
type MetadataService struct {
	session Session
	cache   *cache.Store
	limiter Limiter
	dump    *debugdump.Writer
	links   extract.Links
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	breaker *gobreaker.CircuitBreaker[struct{}]
	group   singleflight.Group

	// browseMu serializes use of the shared default page.
	browseMu sync.Mutex
	ready    atomic.Bool
}

// Option configures a MetadataService.
type Option func(*MetadataService)

// WithLimiter paces navigations with l.
func WithLimiter(l Limiter) Option {
	return func(s *MetadataService) { s.limiter = l }
}

// WithDebugDump writes debug files through w. A nil w disables dumps.
func WithDebugDump(w *debugdump.Writer) Option {
	return func(s *MetadataService) { s.dump = w }
}

// WithSleep overrides how the service waits for settle and backoff delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *MetadataService) { s.sleep = sleep }
}

// NewMetadataService creates a new metadata service.
func NewMetadataService(
	session Session,
	store *cache.Store,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *MetadataService {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	s := &MetadataService{
		session: session,
		cache:   store,
		limiter: unlimited{},
		links:   extract.Links{Base: cfg.PublicURL},
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = newBreaker("upstream", cfg, logger)
	return s
}

// SearchAlbums searches releases; result links point at /album.
func (s *MetadataService) SearchAlbums(ctx context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error) {
	return s.searchAlbums(ctx, OpSearch, artist, album, s.links.Album)
}

// SearchAlbumsFull searches releases; result links point at /album_full.
func (s *MetadataService) SearchAlbumsFull(ctx context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error) {
	return s.searchAlbums(ctx, OpSearchFull, artist, album, s.links.AlbumFull)
}

func (s *MetadataService) searchAlbums(
	ctx context.Context,
	op, artist, album string,
	link func(string) string,
) (*extract.SearchResults[extract.AlbumSearchRow], error) {
	artist, album = normalize(artist), normalize(album)
	if artist == "" && album == "" {
		return nil, domainerrors.MissingParameter(MsgMissingSearch)
	}

	target := AlbumSearchURL(s.cfg.BaseURL, artist, album)
	key := op + ":" + artist + "|" + album

	return load(ctx, s, op, key, func(ctx context.Context) (*extract.SearchResults[extract.AlbumSearchRow], error) {
		body, err := s.search(ctx, target, AlbumSearchEndpoint)
		if err != nil {
			return nil, err
		}
		rows, err := extract.AlbumSearch(body, link)
		if err != nil {
			return nil, domainerrors.CaptureFailed(AlbumSearchEndpoint).WithCause(err)
		}

		s.logger.Info("album search scraped", "artist", artist, "album", album, "results", len(rows))
		s.dump.Output(op, target, rows)
		return &extract.SearchResults[extract.AlbumSearchRow]{Results: rows}, nil
	})
}

// SearchArtists searches bands by name; result links point at /artist_info.
func (s *MetadataService) SearchArtists(ctx context.Context, artist string) (*extract.SearchResults[extract.ArtistSearchRow], error) {
	artist = normalize(artist)
	if artist == "" {
		return nil, domainerrors.MissingParameter(MsgMissingArtist)
	}

	target := BandSearchURL(s.cfg.BaseURL, artist)
	key := OpSearch + ":" + artist + "|info"

	return load(ctx, s, OpSearchArtist, key, func(ctx context.Context) (*extract.SearchResults[extract.ArtistSearchRow], error) {
		body, err := s.search(ctx, target, BandSearchEndpoint)
		if err != nil {
			return nil, err
		}
		rows, err := extract.ArtistSearch(body, s.links.Artist)
		if err != nil {
			return nil, domainerrors.CaptureFailed(BandSearchEndpoint).WithCause(err)
		}

		s.logger.Info("artist search scraped", "artist", artist, "results", len(rows))
		s.dump.Output(OpSearchArtist, target, rows)
		return &extract.SearchResults[extract.ArtistSearchRow]{Results: rows}, nil
	})
}

// GetAlbum returns the release at url.
func (s *MetadataService) GetAlbum(ctx context.Context, url string) (*extract.Album, error) {
	url = normalize(url)
	if url == "" {
		return nil, domainerrors.MissingParameter(MsgMissingURL)
	}
	s.sweep(ctx)
	return s.getAlbum(ctx, url)
}

func (s *MetadataService) getAlbum(ctx context.Context, url string) (*extract.Album, error) {
	return load(ctx, s, OpAlbum, OpAlbum+":"+url, func(ctx context.Context) (*extract.Album, error) {
		page, err := s.page(ctx, url)
		if err != nil {
			return nil, err
		}
		album, err := extract.ParseAlbum(page, url)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse album page")
		}

		fields := album.Fields()
		s.logUnicode(OpAlbum, url, fields)
		s.dump.HTML(OpAlbum, page)
		s.dump.Fields(OpAlbum, debugdump.Section{Fields: fields})
		s.dump.Output(OpAlbum, url, album)
		return album, nil
	})
}

// GetArtist returns the band at url.
func (s *MetadataService) GetArtist(ctx context.Context, url string) (*extract.Artist, error) {
	url = normalize(url)
	if url == "" {
		return nil, domainerrors.MissingParameter(MsgMissingURL)
	}
	s.sweep(ctx)
	return s.getArtist(ctx, url)
}

func (s *MetadataService) getArtist(ctx context.Context, url string) (*extract.Artist, error) {
	return load(ctx, s, OpBand, OpBand+":"+url, func(ctx context.Context) (*extract.Artist, error) {
		page, err := s.page(ctx, url)
		if err != nil {
			return nil, err
		}
		artist, err := extract.ParseArtist(page, url)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse band page")
		}

		fields := artist.Fields()
		s.logUnicode(OpBand, url, fields)
		s.dump.HTML(OpBand, page)
		s.dump.Fields(OpBand, debugdump.Section{Fields: fields})
		s.dump.Output(OpBand, url, artist)
		return artist, nil
	})
}

// GetAlbumWithArtist returns the release at url together with its band.
// A failed sub-fetch is returned unchanged and nothing is cached for the pair.
func (s *MetadataService) GetAlbumWithArtist(ctx context.Context, url string) (*extract.AlbumWithArtist, error) {
	url = normalize(url)
	if url == "" {
		return nil, domainerrors.MissingParameter(MsgMissingURL)
	}
	s.sweep(ctx)

	return load(ctx, s, OpAlbumWithArtist, OpAlbumWithArtist+":"+url, func(ctx context.Context) (*extract.AlbumWithArtist, error) {
		album, err := s.getAlbum(ctx, url)
		if err != nil {
			return nil, err
		}
		if album.BandURL == "" {
			return nil, domainerrors.Dependency(MsgMissingArtistLink)
		}
		artist, err := s.getArtist(ctx, album.BandURL)
		if err != nil {
			return nil, err
		}

		combined := &extract.AlbumWithArtist{
			AlbumURL:  url,
			ArtistURL: album.BandURL,
			Album:     album,
			Artist:    artist,
		}
		s.dump.Fields(OpAlbumWithArtist,
			debugdump.Section{Name: "album_data", Fields: album.Fields()},
			debugdump.Section{Name: "artist_data", Fields: artist.Fields()},
		)
		s.dump.Output(OpAlbumWithArtist, url, combined)
		return combined, nil
	})
}

// InvalidateCache drops one cache entry.
func (s *MetadataService) InvalidateCache(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return domainerrors.MissingParameter(MsgMissingKey)
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "invalidate cache entry")
	}
	s.logger.Info("cache entry invalidated", "key", key)
	return nil
}

// SweepCache removes every expired entry and returns how many were removed.
func (s *MetadataService) SweepCache(ctx context.Context) (int, error) {
	n, err := s.cache.Sweep(ctx)
	if err != nil {
		return n, domainerrors.Wrap(err, domainerrors.CodeInternal, "sweep cache")
	}
	return n, nil
}

// SessionStatus reports the browser session state.
func (s *MetadataService) SessionStatus() browser.Status {
	return s.session.Status()
}

// CloseSession tears the browser session down; the next request starts a new one.
func (s *MetadataService) CloseSession() error {
	return s.session.Close()
}

// Ready reports whether the last preload reached the site without a challenge.
func (s *MetadataService) Ready() bool {
	return s.ready.Load()
}

// load returns the cached value for key or runs fetch once per key at a time
// and caches its result. A cache read error is treated as a miss.
func load[T any](ctx context.Context, s *MetadataService, op, key string, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("cache lookup failed", "key", key, "error", err)
	}
	if found {
		s.logger.Debug("cache hit", "key", key)
		return cached, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		start := time.Now()
		value, err := fetch(ctx)
		metrics.RecordUpstreamFetch(op, errorLabel(err), time.Since(start))
		if err != nil {
			s.logger.Warn("upstream fetch failed", "operation", op, "key", key, "error", err)
			return nil, err
		}

		if err := s.cache.Put(ctx, key, value); err != nil {
			s.logger.Warn("failed to cache result", "key", key, "error", err)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		s.logger.Debug("joined in-flight fetch", "key", key)
	}
	return v.(T), nil
}

// sweep runs the pre-flight expiry pass. Failures only cost stale bytes on disk.
func (s *MetadataService) sweep(ctx context.Context) {
	if _, err := s.cache.Sweep(ctx); err != nil {
		s.logger.Warn("cache sweep failed", "error", err)
	}
}

func (s *MetadataService) logUnicode(kind, url string, fields []extract.Field) {
	if names := extract.UnicodeFields(fields); len(names) > 0 {
		s.logger.Debug("record contains non-ASCII text", "kind", kind, "url", url, "fields", names)
	}
}

// normalize trims and NFC-normalizes a request parameter so equivalent
// spellings share one cache key.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	return string(domainerrors.CodeOf(err))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type unlimited struct{}

func (unlimited) WaitURL(context.Context, string) error { return nil }

// CacheEntries counts stored entries, expired ones included.
func (s *MetadataService) CacheEntries(ctx context.Context) (int, error) {
	return s.cache.Count(ctx)
}
