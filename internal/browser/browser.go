// Package browser owns the single long-lived automation session used to reach
// a site behind bot protection.
//
// The session is four nested handles (engine, browser, browsing context,
// default page) that exist together or not at all. It is created lazily on the
// first request, reused across requests so cookies earned by passing a
// challenge are kept, and closed by a monitor goroutine once it has been idle
// for too long. Any navigation failure should be answered with Close: the next
// request starts from a clean session.
package browser

import (
	"errors"
	"time"
)

// ErrClosed is returned when a session was torn down while a caller was using it.
var ErrClosed = errors.New("browser session closed")

// StartFunc starts the automation engine.
type StartFunc func() (Engine, error)

// Engine is a running automation driver.
type Engine interface {
	Launch(opts LaunchOptions) (Browser, error)
	Stop() error
}

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	Headless bool
}

// Browser is a launched browser process.
type Browser interface {
	NewContext(opts ContextOptions) (BrowsingContext, error)
	Close() error
}

// ContextOptions configures an isolated browsing context.
type ContextOptions struct {
	DefaultTimeout time.Duration
	Filter         *RequestFilter
}

// BrowsingContext holds cookies and storage shared by its pages.
type BrowsingContext interface {
	NewPage() (Page, error)
	Close() error
}

// Page is one tab.
type Page interface {
	// Goto navigates and returns once the DOM content has loaded.
	Goto(url string, timeout time.Duration) error
	Content() (string, error)
	Title() (string, error)
	// Exists reports whether selector matches anything in the current document.
	Exists(selector string) (bool, error)
	// OnResponse registers fn for every network response until the returned
	// function is called.
	OnResponse(fn func(Response)) (remove func())
	Close() error
}

// Response is a network response observed by a page.
type Response interface {
	URL() string
	Status() int
	Body() ([]byte, error)
}
