// Package cache stores scraped metadata with a fixed time-to-live.
//
// Every value is persisted as {"timestamp": ..., "data": ...} under a string key.
// An entry older than the TTL is treated as absent: Get deletes it on sight and
// Sweep removes all of them in one pass. Operations on the same key are
// serialized so an expiry check and the delete that follows it cannot interleave
// with a concurrent Put.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/maproxy/maproxy/internal/metrics"
)

// DefaultTTL is how long a scraped record stays fresh.
const DefaultTTL = 15 * 24 * time.Hour

// ErrNotFound is returned by backends for a missing key.
var ErrNotFound = errors.New("cache: key not found")

// Backend is raw key/value persistence. Implementations must be safe for
// concurrent use; the Store provides per-key ordering on top.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// ForEach visits every entry. fn must not call back into the backend.
	ForEach(ctx context.Context, fn func(key string, value []byte) error) error
	Close() error
}

// Entry is the persisted record shape.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Store is a TTL cache over a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	locks   *keyLocks
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store. A non-positive ttl selects DefaultTTL.
func New(backend Backend, ttl time.Duration, logger *slog.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend: backend,
		ttl:     ttl,
		locks:   newKeyLocks(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put stores value under key with the current time, replacing any prior entry.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %q: %w", key, err)
	}
	raw, err := json.Marshal(Entry{Timestamp: s.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal cache entry %q: %w", key, err)
	}

	unlock := s.locks.lock(key)
	defer unlock()

	if err := s.backend.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("put cache entry %q: %w", key, err)
	}
	metrics.RecordCacheWrite(Kind(key))
	return nil
}

// Get decodes the live entry for key into dest and reports whether one existed.
// An expired or unreadable entry is deleted and reported as absent.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	unlock := s.locks.lock(key)
	defer unlock()

	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordCacheLookup(Kind(key), "miss")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false, s.deleteLocked(ctx, key)
	}

	if s.expired(entry) {
		s.logger.Info("cache entry expired", "key", key, "stored_at", entry.Timestamp)
		metrics.RecordCacheLookup(Kind(key), "expired")
		return false, s.deleteLocked(ctx, key)
	}

	if err := json.Unmarshal(entry.Data, dest); err != nil {
		s.logger.Warn("discarding cache entry with unexpected shape", "key", key, "error", err)
		return false, s.deleteLocked(ctx, key)
	}

	metrics.RecordCacheLookup(Kind(key), "hit")
	return true, nil
}

// Delete removes key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.lock(key)
	defer unlock()

	return s.deleteLocked(ctx, key)
}

// Sweep removes every expired entry and returns how many were removed.
// Entries without a readable timestamp count as expired.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	var candidates []string
	err := s.backend.ForEach(ctx, func(key string, value []byte) error {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil || s.expired(entry) {
			candidates = append(candidates, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache: %w", err)
	}

	removed := 0
	for _, key := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		ok, err := s.removeIfExpired(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			s.logger.Info("removed expired cache entry", "key", key)
		}
	}

	if removed > 0 {
		metrics.CacheSweptTotal.Add(float64(removed))
	}
	return removed, nil
}

// Count returns the number of stored entries, expired ones included.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.backend.ForEach(ctx, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// removeIfExpired re-checks key under its lock; a Put since the scan wins.
func (s *Store) removeIfExpired(ctx context.Context, key string) (bool, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err == nil && !s.expired(entry) {
		return false, nil
	}
	return true, s.deleteLocked(ctx, key)
}

func (s *Store) deleteLocked(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}
	return nil
}

func (s *Store) expired(e Entry) bool {
	return s.now().Sub(e.Timestamp) > s.ttl
}

// Kind returns the operation prefix of a key ("album" for "album:<url>").
func Kind(key string) string {
	kind, _, found := strings.Cut(key, ":")
	if !found {
		return "other"
	}
	return kind
}
