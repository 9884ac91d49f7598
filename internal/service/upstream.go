package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/maproxy/maproxy/internal/browser"
	domainerrors "github.com/maproxy/maproxy/internal/errors"
	"github.com/maproxy/maproxy/internal/extract"
	"github.com/maproxy/maproxy/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
)

// AJAX endpoints whose responses carry search results.
const (
	AlbumSearchEndpoint = "ajax-advanced/searching/albums"
	BandSearchEndpoint  = "ajax-advanced/searching/bands"
)

const (
	albumSearchQuery = "?releaseYearFrom=0001&releaseYearTo=9999&sEcho=1&iColumns=4&exactBandMatch=1"
	bandSearchQuery  = "?genre=&country=&yearCreationFrom=&yearCreationTo=&bandNotes=&status=&themes=" +
		"&location=&bandLabelName=&sEcho=1&iColumns=3&sColumns=&iDisplayStart=0&iDisplayLength=200&exactBandMatch=1"
)

// AlbumSearchURL builds the release search URL. Empty terms are left out.
func AlbumSearchURL(base, artist, album string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/search/" + AlbumSearchEndpoint + "/")
	b.WriteString(albumSearchQuery)
	if artist != "" {
		b.WriteString("&bandName=" + quote(artist))
	}
	if album != "" {
		b.WriteString("&releaseTitle=" + quote(album))
	}
	return b.String()
}

// BandSearchURL builds the band search URL.
func BandSearchURL(base, artist string) string {
	return strings.TrimRight(base, "/") + "/search/" + BandSearchEndpoint + "/" + bandSearchQuery + "&bandName=" + quote(artist)
}

// HomeURL is the page used for preload checks.
func HomeURL(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

// quote percent-encodes a query value with spaces as %20, which is what the
// site's own search form sends.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// navigate runs fn on the shared page. It waits for a rate-limit slot, goes
// through the circuit breaker and holds the browse lock for the duration.
// A navigation failure closes the session before it is returned.
func (s *MetadataService) navigate(ctx context.Context, target string, fn func(browser.Page) error) error {
	if err := s.limiter.WaitURL(ctx, target); err != nil {
		return fmt.Errorf("wait for upstream slot: %w", err)
	}

	_, err := s.breaker.Execute(func() (struct{}, error) {
		s.browseMu.Lock()
		defer s.browseMu.Unlock()

		page, err := s.session.Page(ctx, false)
		if err != nil {
			err = domainerrors.Navigation(err, "Failed to start browser session")
		} else {
			err = fn(page)
		}

		if errors.Is(err, domainerrors.ErrNavigation) {
			s.resetSession(target, err)
		}
		return struct{}{}, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domainerrors.UpstreamUnavailable(err)
	}
	return err
}

func (s *MetadataService) resetSession(target string, cause error) {
	s.logger.Warn("navigation failed, closing browser session", "url", target, "error", cause)
	if err := s.session.Close(); err != nil {
		s.logger.Warn("browser session teardown incomplete", "error", err)
	}
}

// search loads an AJAX search URL and returns the captured response body.
func (s *MetadataService) search(ctx context.Context, target, endpoint string) ([]byte, error) {
	var body []byte
	err := s.navigate(ctx, target, func(page browser.Page) error {
		var err error
		body, err = s.capture(ctx, page, target, endpoint)
		return err
	})
	return body, err
}

// capture navigates to target and waits the settle delay for 200 responses
// from endpoint. Bodies are read after the wait, outside the event callback,
// and the latest one carrying aaData wins.
func (s *MetadataService) capture(ctx context.Context, page browser.Page, target, endpoint string) ([]byte, error) {
	var (
		mu        sync.Mutex
		responses []browser.Response
	)
	remove := page.OnResponse(func(r browser.Response) {
		if r.Status() != http.StatusOK || !strings.Contains(r.URL(), endpoint) {
			return
		}
		mu.Lock()
		responses = append(responses, r)
		mu.Unlock()
	})
	defer remove()

	if err := page.Goto(target, s.cfg.ScrapeTimeout); err != nil {
		return nil, domainerrors.Navigationf(err, "Failed to load %s", target)
	}
	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return nil, err
	}

	mu.Lock()
	captured := slices.Clone(responses)
	mu.Unlock()

	var lastErr error
	for _, resp := range slices.Backward(captured) {
		body, err := resp.Body()
		if err != nil {
			lastErr = err
			continue
		}
		if gjson.GetBytes(body, "aaData").Exists() {
			return body, nil
		}
	}
	if lastErr != nil {
		return nil, domainerrors.CaptureFailed(endpoint).WithCause(lastErr)
	}
	return nil, domainerrors.CaptureFailed(endpoint)
}

// page loads an HTML page through the shared session and returns its markup.
// A challenge interstitial is a navigation failure so it is never cached.
func (s *MetadataService) page(ctx context.Context, target string) (string, error) {
	var content string
	err := s.navigate(ctx, target, func(page browser.Page) error {
		if err := page.Goto(target, s.cfg.ScrapeTimeout); err != nil {
			return domainerrors.Navigationf(err, "Failed to load %s", target)
		}

		html, err := page.Content()
		if err != nil {
			return domainerrors.Navigationf(err, "Failed to read %s", target)
		}
		title, err := page.Title()
		if err != nil {
			return domainerrors.Navigationf(err, "Failed to read %s", target)
		}
		if extract.IsChallengeTitle(title) || extract.IsChallengePage(html) {
			return domainerrors.Navigationf(ErrChallenge, "Challenge page served for %s", target)
		}

		content = html
		return nil
	})
	return content, err
}

// newBreaker opens after cfg.BreakerFailures consecutive navigation failures.
// Capture misses and parse errors do not count against the upstream.
func newBreaker(name string, cfg Config, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domainerrors.ErrNavigation)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
		},
	})
}
