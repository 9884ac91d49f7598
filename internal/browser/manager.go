package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maproxy/maproxy/internal/id"
	"github.com/maproxy/maproxy/internal/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultTimeout         = 15 * time.Second
	DefaultIdleTimeout     = 900 * time.Second
	DefaultMonitorInterval = 60 * time.Second
)

// Config configures a Manager.
type Config struct {
	Headless        bool
	DefaultTimeout  time.Duration // per-action timeout inside the browsing context
	IdleTimeout     time.Duration
	MonitorInterval time.Duration
	Filter          *RequestFilter
}

// Status is a snapshot of the session for diagnostics.
type Status struct {
	Active    bool          `json:"active"`
	SessionID string        `json:"session_id,omitempty"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	LastUsed  time.Time     `json:"last_used,omitzero"`
	IdleFor   time.Duration `json:"-"`
}

// Manager owns at most one live session.
type Manager struct {
	start  StartFunc
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	engine      Engine
	browser     Browser
	bctx        BrowsingContext
	page        Page
	sessionID   string
	startedAt   time.Time
	lastUsed    time.Time
	stopMonitor context.CancelFunc

	monitors sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for idle accounting.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. No browser is started until first use.
func NewManager(start StartFunc, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{start: start, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start ensures a session exists and returns its default page.
// Calling it while a session is live returns the same page.
func (m *Manager) Start(ctx context.Context) (Page, error) {
	return m.Page(ctx, false)
}

// Page ensures a session exists and returns either its shared default page or,
// with fresh set, a new page in the same browsing context. The caller owns a
// fresh page and must close it.
func (m *Manager) Page(ctx context.Context, fresh bool) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked() {
		if err := m.startLocked(); err != nil {
			return nil, err
		}
	}
	m.lastUsed = m.now()

	if !fresh {
		return m.page, nil
	}
	page, err := m.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page, nil
}

// Touch marks the session as used without acquiring a page.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked() {
		m.lastUsed = m.now()
	}
}

// IsActive reports whether all session handles are present.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Status returns a snapshot of the session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked() {
		return Status{}
	}
	return Status{
		Active:    true,
		SessionID: m.sessionID,
		StartedAt: m.startedAt,
		LastUsed:  m.lastUsed,
		IdleFor:   m.now().Sub(m.lastUsed),
	}
}

// Close tears the session down. Each handle is closed independently; failures
// are logged and returned joined, and the session is reset regardless.
// Closing an absent session is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked("explicit")
}

// Shutdown closes the session and waits for its monitor to exit.
func (m *Manager) Shutdown() error {
	err := m.Close()
	m.monitors.Wait()
	return err
}

func (m *Manager) activeLocked() bool {
	return m.engine != nil && m.browser != nil && m.bctx != nil && m.page != nil
}

// startLocked builds all four handles or none of them.
func (m *Manager) startLocked() (err error) {
	var (
		engine  Engine
		browser Browser
		bctx    BrowsingContext
		page    Page
	)
	defer func() {
		if err == nil {
			return
		}
		if bctx != nil {
			_ = bctx.Close()
		}
		if browser != nil {
			_ = browser.Close()
		}
		if engine != nil {
			_ = engine.Stop()
		}
		m.logger.Error("browser session start failed", "error", err)
	}()

	if engine, err = m.start(); err != nil {
		return fmt.Errorf("start automation engine: %w", err)
	}
	if browser, err = engine.Launch(LaunchOptions{Headless: m.cfg.Headless}); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	bctx, err = browser.NewContext(ContextOptions{DefaultTimeout: m.cfg.DefaultTimeout, Filter: m.cfg.Filter})
	if err != nil {
		return fmt.Errorf("create browsing context: %w", err)
	}
	if page, err = bctx.NewPage(); err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	sessionID, idErr := id.Generate("ses")
	if idErr != nil {
		sessionID = "ses-" + m.now().Format("150405.000")
	}

	m.engine, m.browser, m.bctx, m.page = engine, browser, bctx, page
	m.sessionID = sessionID
	m.startedAt = m.now()
	m.lastUsed = m.startedAt

	monitorCtx, cancel := context.WithCancel(context.Background())
	m.stopMonitor = cancel
	m.monitors.Add(1)
	go m.monitor(monitorCtx, sessionID)

	metrics.RecordSessionStarted()
	m.logger.Info("browser session started", "session", sessionID, "headless", m.cfg.Headless)
	return nil
}

func (m *Manager) closeLocked(reason string) error {
	if m.engine == nil && m.browser == nil && m.bctx == nil && m.page == nil {
		return nil
	}

	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
	}

	var errs []error
	if m.bctx != nil {
		if err := m.bctx.Close(); err != nil {
			m.logger.Warn("closing browsing context failed", "session", m.sessionID, "error", err)
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.logger.Warn("closing browser failed", "session", m.sessionID, "error", err)
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if m.engine != nil {
		if err := m.engine.Stop(); err != nil {
			m.logger.Warn("stopping automation engine failed", "session", m.sessionID, "error", err)
			errs = append(errs, fmt.Errorf("stop engine: %w", err))
		}
	}

	m.logger.Info("browser session closed", "session", m.sessionID, "reason", reason)
	metrics.RecordSessionClosed(reason)

	m.engine, m.browser, m.bctx, m.page = nil, nil, nil, nil
	m.sessionID = ""
	m.startedAt = time.Time{}
	return errors.Join(errs...)
}

// monitor closes session sessionID once it has been idle past the limit.
// It exits when cancelled or when its session is gone.
func (m *Manager) monitor(ctx context.Context, sessionID string) {
	defer m.monitors.Done()

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.closeIfIdle(sessionID) {
				return
			}
		}
	}
}

// closeIfIdle reports whether the monitor for sessionID is done.
func (m *Manager) closeIfIdle(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionID != sessionID || !m.activeLocked() {
		return true
	}

	idle := m.now().Sub(m.lastUsed)
	if idle <= m.cfg.IdleTimeout {
		return false
	}

	m.logger.Info("browser session idle, closing", "session", sessionID, "idle", idle.Round(time.Second))
	_ = m.closeLocked("idle")
	return true
}
