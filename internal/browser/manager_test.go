package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records every handle it hands out so tests can check teardown.
// engineFaults are the failures a fakeEngine injects.
type engineFaults struct {
	launchErr  error
	contextErr error
	pageErr    error
	closeErr   error
}

type fakeEngine struct {
	engineFaults

	mu       sync.Mutex
	stopped  int
	browsers []*fakeBrowser
}

func (e *fakeEngine) Launch(LaunchOptions) (Browser, error) {
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	b := &fakeBrowser{engine: e}
	e.mu.Lock()
	e.browsers = append(e.browsers, b)
	e.mu.Unlock()
	return b, nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped++
	return nil
}

func (e *fakeEngine) stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

type fakeBrowser struct {
	engine   *fakeEngine
	closed   atomic.Bool
	contexts []*fakeContext
}

func (b *fakeBrowser) NewContext(opts ContextOptions) (BrowsingContext, error) {
	if b.engine.contextErr != nil {
		return nil, b.engine.contextErr
	}
	c := &fakeContext{engine: b.engine, opts: opts}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *fakeBrowser) Close() error {
	b.closed.Store(true)
	return b.engine.closeErr
}

type fakeContext struct {
	engine *fakeEngine
	opts   ContextOptions
	closed atomic.Bool
	pages  int
}

func (c *fakeContext) NewPage() (Page, error) {
	if c.engine.pageErr != nil {
		return nil, c.engine.pageErr
	}
	c.pages++
	return &fakePage{}, nil
}

func (c *fakeContext) Close() error {
	c.closed.Store(true)
	return nil
}

type fakePage struct {
	closed atomic.Bool
}

func (p *fakePage) Goto(string, time.Duration) error { return nil }
func (p *fakePage) Content() (string, error) { return "", nil }
func (p *fakePage) Title() (string, error) { return "", nil }
func (p *fakePage) Exists(string) (bool, error) { return false, nil }
func (p *fakePage) OnResponse(func(Response)) func() { return func() {} }

func (p *fakePage) Close() error {
	p.closed.Store(true)
	return nil
}

// starter counts engine starts and hands out fresh fakeEngines built from proto.
type starter struct {
	mu      sync.Mutex
	proto   engineFaults
	engines []*fakeEngine
	err     error
}

func (s *starter) start() (Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	e := &fakeEngine{engineFaults: s.proto}
	s.engines = append(s.engines, e)
	return e, nil
}

func (s *starter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_StartReusesSession(t *testing.T) {
	s := &starter{}
	m := NewManager(s.start, Config{Headless: true}, testLogger())
	t.Cleanup(func() { _ = m.Shutdown() })

	first, err := m.Start(context.Background())
	require.NoError(t, err)
	second, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, s.count())
	assert.True(t, m.IsActive())

	status := m.Status()
	assert.True(t, status.Active)
	assert.Contains(t, status.SessionID, "ses-")
}

func TestManager_ContextOptions(t *testing.T) {
	s := &starter{}
	filter := DefaultRequestFilter()
	m := NewManager(s.start, Config{Filter: filter}, testLogger())
	t.Cleanup(func() { _ = m.Shutdown() })

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	ctxOpts := s.engines[0].browsers[0].contexts[0].opts
	assert.Equal(t, DefaultTimeout, ctxOpts.DefaultTimeout)
	assert.Same(t, filter, ctxOpts.Filter)
}

func TestManager_CloseThenRestart(t *testing.T) {
	s := &starter{}
	m := NewManager(s.start, Config{}, testLogger())
	t.Cleanup(func() { _ = m.Shutdown() })

	first, err := m.Start(context.Background())
	require.NoError(t, err)
	firstID := m.Status().SessionID

	require.NoError(t, m.Close())
	assert.False(t, m.IsActive())
	assert.Equal(t, Status{}, m.Status())

	engine := s.engines[0]
	assert.Equal(t, 1, engine.stops())
	assert.True(t, engine.browsers[0].closed.Load())
	assert.True(t, engine.browsers[0].contexts[0].closed.Load())

	second, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, firstID, m.Status().SessionID)
	assert.Equal(t, 2, s.count())
}

func TestManager_CloseWithoutSession(t *testing.T) {
	m := NewManager((&starter{}).start, Config{}, testLogger())
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestManager_CloseToleratesHandleErrors(t *testing.T) {
	closeErr := errors.New("browser already gone")
	s := &starter{proto: engineFaults{closeErr: closeErr}}
	m := NewManager(s.start, Config{}, testLogger())

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	err = m.Close()
	require.ErrorIs(t, err, closeErr)

	// The remaining handles were still released and the session reset.
	engine := s.engines[0]
	assert.Equal(t, 1, engine.stops())
	assert.True(t, engine.browsers[0].contexts[0].closed.Load())
	assert.False(t, m.IsActive())
	require.NoError(t, m.Shutdown())
}

func TestManager_PartialStartFailure(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		proto       engineFaults
		wantErr     string
		wantBrowser bool
		wantContext bool
	}{
		{"launch fails", engineFaults{launchErr: boom}, "launch browser", false, false},
		{"context fails", engineFaults{contextErr: boom}, "create browsing context", true, false},
		{"page fails", engineFaults{pageErr: boom}, "open page", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &starter{proto: tt.proto}
			m := NewManager(s.start, Config{}, testLogger())

			_, err := m.Start(context.Background())
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, m.IsActive())

			engine := s.engines[0]
			assert.Equal(t, 1, engine.stops(), "engine stopped after failed start")
			if tt.wantBrowser {
				require.Len(t, engine.browsers, 1)
				assert.True(t, engine.browsers[0].closed.Load())
			}
			if tt.wantContext {
				require.Len(t, engine.browsers[0].contexts, 1)
				assert.True(t, engine.browsers[0].contexts[0].closed.Load())
			}
			require.NoError(t, m.Shutdown())
		})
	}
}

func TestManager_EngineStartFailure(t *testing.T) {
	s := &starter{err: errors.New("driver missing")}
	m := NewManager(s.start, Config{}, testLogger())

	_, err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start automation engine")
	assert.False(t, m.IsActive())
}

func TestManager_FreshPage(t *testing.T) {
	s := &starter{}
	m := NewManager(s.start, Config{}, testLogger())
	t.Cleanup(func() { _ = m.Shutdown() })

	shared, err := m.Page(context.Background(), false)
	require.NoError(t, err)
	fresh, err := m.Page(context.Background(), true)
	require.NoError(t, err)

	assert.NotSame(t, shared, fresh)
	assert.Equal(t, 2, s.engines[0].browsers[0].contexts[0].pages)
	assert.Equal(t, 1, s.count(), "fresh page reuses the session")
}

func TestManager_CancelledContext(t *testing.T) {
	s := &starter{}
	m := NewManager(s.start, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Page(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.count())
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManager_IdleMonitorClosesSession(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := &starter{}
	m := NewManager(s.start, Config{
		IdleTimeout:     time.Minute,
		MonitorInterval: 5 * time.Millisecond,
	}, testLogger(), WithClock(clk.Now))
	t.Cleanup(func() { _ = m.Shutdown() })

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	// Used recently: the monitor leaves the session alone.
	clk.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.IsActive())
	assert.Equal(t, 30*time.Second, m.Status().IdleFor)

	clk.Advance(31 * time.Second)
	assert.Eventually(t, func() bool { return !m.IsActive() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.engines[0].stops())
}

func TestManager_TouchDefersIdleClose(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := &starter{}
	m := NewManager(s.start, Config{
		IdleTimeout:     time.Minute,
		MonitorInterval: 5 * time.Millisecond,
	}, testLogger(), WithClock(clk.Now))
	t.Cleanup(func() { _ = m.Shutdown() })

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	clk.Advance(50 * time.Second)
	m.Touch()
	clk.Advance(50 * time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, m.IsActive())
}
