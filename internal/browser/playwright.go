package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/maproxy/maproxy/internal/metrics"
	"github.com/playwright-community/playwright-go"
)

// InstallPlaywright downloads the driver and the named browser if missing.
func InstallPlaywright(engine string) error {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{engine}}); err != nil {
		return fmt.Errorf("install playwright %s: %w", engine, err)
	}
	return nil
}

// Playwright returns a StartFunc that runs the Playwright driver and launches
// engine ("firefox", "chromium" or "webkit").
func Playwright(engine string) StartFunc {
	return func() (Engine, error) {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("run playwright: %w", err)
		}
		return &pwEngine{pw: pw, name: engine}, nil
	}
}

type pwEngine struct {
	pw   *playwright.Playwright
	name string
}

func (e *pwEngine) Launch(opts LaunchOptions) (Browser, error) {
	var bt playwright.BrowserType
	switch e.name {
	case "chromium":
		bt = e.pw.Chromium
	case "webkit":
		bt = e.pw.WebKit
	default:
		bt = e.pw.Firefox
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, err
	}
	return &pwBrowser{b: b}, nil
}

func (e *pwEngine) Stop() error {
	return e.pw.Stop()
}

type pwBrowser struct {
	b playwright.Browser
}

func (b *pwBrowser) NewContext(opts ContextOptions) (BrowsingContext, error) {
	c, err := b.b.NewContext()
	if err != nil {
		return nil, err
	}
	c.SetDefaultTimeout(float64(opts.DefaultTimeout.Milliseconds()))

	if opts.Filter != nil {
		filter := opts.Filter
		err := c.Route("**/*", func(route playwright.Route) {
			req := route.Request()
			if blocked, reason := filter.Block(req.ResourceType(), req.URL()); blocked {
				metrics.RecordBlockedRequest(reason)
				_ = route.Abort()
				return
			}
			_ = route.Continue()
		})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("install request filter: %w", err)
		}
	}
	return &pwContext{c: c}, nil
}

func (b *pwBrowser) Close() error {
	return b.b.Close()
}

type pwContext struct {
	c playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	p, err := c.c.NewPage()
	if err != nil {
		return nil, err
	}
	return newPWPage(p), nil
}

func (c *pwContext) Close() error {
	return c.c.Close()
}

// pwPage registers one Playwright response handler and fans responses out to
// the listeners currently attached, so short-lived listeners never pile up on
// the shared page.
type pwPage struct {
	p playwright.Page

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Response)
}

func newPWPage(p playwright.Page) *pwPage {
	pp := &pwPage{p: p, listeners: make(map[int]func(Response))}
	p.OnResponse(pp.dispatch)
	return pp
}

func (pp *pwPage) dispatch(r playwright.Response) {
	pp.mu.Lock()
	fns := make([]func(Response), 0, len(pp.listeners))
	for _, fn := range pp.listeners {
		fns = append(fns, fn)
	}
	pp.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

func (pp *pwPage) OnResponse(fn func(Response)) func() {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	listenerID := pp.nextID
	pp.nextID++
	pp.listeners[listenerID] = fn

	return func() {
		pp.mu.Lock()
		defer pp.mu.Unlock()
		delete(pp.listeners, listenerID)
	}
}

func (pp *pwPage) Goto(url string, timeout time.Duration) error {
	_, err := pp.p.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (pp *pwPage) Content() (string, error) {
	return pp.p.Content()
}

func (pp *pwPage) Title() (string, error) {
	return pp.p.Title()
}

func (pp *pwPage) Exists(selector string) (bool, error) {
	n, err := pp.p.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (pp *pwPage) Close() error {
	return pp.p.Close()
}
