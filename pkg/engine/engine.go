// Package engine provides sessionpool.ResourceProvider implementations backed
// by real browser automation engines.
//
// Two engines are available:
//   - "playwright": one shared Chromium driven by playwright-go, with an
//     isolated browser context and page per session.
//   - "rod": one shared Chromium driven over CDP by go-rod, with an
//     incognito context and page per session.
//
// Both translate the deadline carried by the operation context into the
// engine's own timeout mechanism, so a page operation never outlives the
// timeout the pool assigned to it.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

// Engine names accepted by New.
const (
	Playwright = "playwright"
	Rod        = "rod"
)

// Defaults applied to every new page.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultPageTimeout bounds engine calls made without a context deadline.
	DefaultPageTimeout = 30 * time.Second
)

// Lifecycle states understood by PageDriver.Navigate.
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

// Options configures a provider.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string

	// BrowserPath overrides the Chromium binary. Empty lets the engine
	// download or locate one.
	BrowserPath string

	// Stealth applies bot-detection evasions to new pages (rod only).
	Stealth bool

	Logger sessionpool.Logger
}

func (o *Options) normalize() {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}

// New starts the named engine and returns a provider for it.
func New(name string, opts Options) (sessionpool.ResourceProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Playwright:
		return NewPlaywrightProvider(opts)
	case Rod:
		return NewRodProvider(opts)
	default:
		return nil, fmt.Errorf("unknown browser engine %q (must be %q or %q)", name, Playwright, Rod)
	}
}

// ValidWaitUntil reports whether state is a lifecycle state Navigate accepts.
// The empty string is accepted and means WaitLoad.
func ValidWaitUntil(state string) bool {
	switch state {
	case "", WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
		return true
	}
	return false
}

// remaining returns the time left before ctx expires, or DefaultPageTimeout
// when ctx has no deadline. It never returns less than a millisecond.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultPageTimeout
	}
	d := time.Until(deadline)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// timeoutMillis converts the context deadline into a playwright timeout.
func timeoutMillis(ctx context.Context) *float64 {
	ms := float64(remaining(ctx).Milliseconds())
	return &ms
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
