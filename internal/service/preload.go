package service

import (
	"context"
	"fmt"

	"github.com/maproxy/maproxy/internal/extract"
	"github.com/maproxy/maproxy/internal/metrics"
)

// Preload warms the browser session by loading the home page on a fresh page
// and checking it for bot-check markers. It retries with a backoff and
// reports whether the site was reached cleanly; the proxy serves either way.
func (s *MetadataService) Preload(ctx context.Context) bool {
	home := HomeURL(s.cfg.BaseURL)
	attempts := s.cfg.PreloadRetries

	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.preloadOnce(ctx, home)
		if err == nil {
			s.logger.Info("preload succeeded", "url", home, "attempt", attempt)
			s.setReady(true)
			return true
		}

		s.logger.Warn("preload attempt failed", "url", home, "attempt", attempt, "of", attempts, "error", err)
		if attempt == attempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.PreloadBackoff); err != nil {
			break
		}
	}

	s.setReady(false)
	return false
}

func (s *MetadataService) preloadOnce(ctx context.Context, home string) error {
	if err := s.limiter.WaitURL(ctx, home); err != nil {
		return fmt.Errorf("wait for upstream slot: %w", err)
	}

	page, err := s.session.Page(ctx, true)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("closing preload page failed", "error", err)
		}
	}()

	if err := page.Goto(home, s.cfg.PreloadTimeout); err != nil {
		return fmt.Errorf("load home page: %w", err)
	}

	title, err := page.Title()
	if err != nil {
		return fmt.Errorf("read title: %w", err)
	}
	if extract.IsChallengeTitle(title) {
		return fmt.Errorf("%w: title %q", ErrChallenge, title)
	}
	for _, sel := range extract.ChallengeSelectors {
		found, err := page.Exists(sel)
		if err != nil {
			return fmt.Errorf("query %s: %w", sel, err)
		}
		if found {
			return fmt.Errorf("%w: %s present", ErrChallenge, sel)
		}
	}
	return nil
}

func (s *MetadataService) setReady(ready bool) {
	s.ready.Store(ready)
	metrics.SetPreloadReady(ready)
}
