package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

// urlLookupTimeout bounds the target info lookup behind CurrentURL.
const urlLookupTimeout = 2 * time.Second

// RodProvider creates sessions as incognito contexts of one Chromium
// instance controlled over CDP.
type RodProvider struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     Options
	released bool
}

// NewRodProvider launches Chromium and connects to it.
func NewRodProvider(opts Options) (*RodProvider, error) {
	opts.normalize()

	l := launcher.New()
	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}
	l = l.
		Headless(opts.Headless).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-extensions").
		Set("disable-background-networking")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	opts.Logger.Infof("Rod Chromium launched (headless=%v, stealth=%v)", opts.Headless, opts.Stealth)
	return &RodProvider{launcher: l, browser: browser, opts: opts}, nil
}

// Create opens an incognito context with a single page.
func (p *RodProvider) Create(ctx context.Context) (sessionpool.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	browser, released := p.browser, p.released
	p.mu.Unlock()
	if released {
		return nil, errors.New("rod provider released")
	}

	incognito, err := browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	// The context outlives the creation request.
	incognito = incognito.Context(context.Background())

	var page *rod.Page
	if p.opts.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  p.opts.ViewportWidth,
		Height: p.opts.ViewportHeight,
	})
	if err == nil {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: p.opts.UserAgent})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to configure page: %w", err)
	}

	return &rodResource{
		incognito: incognito,
		driver:    &rodDriver{page: page, lastURL: blankPage},
	}, nil
}

// Destroy disposes the session's incognito context.
func (p *RodProvider) Destroy(res sessionpool.Resource) error {
	r, ok := res.(*rodResource)
	if !ok {
		return fmt.Errorf("unexpected resource type %T", res)
	}
	if err := r.incognito.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

// Release closes the browser and removes the launcher's user data.
func (p *RodProvider) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}
	p.released = true

	err := p.browser.Close()
	p.launcher.Kill()
	p.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

const blankPage = "about:blank"

type rodResource struct {
	incognito *rod.Browser
	driver    *rodDriver
}

func (r *rodResource) Driver() sessionpool.PageDriver {
	return r.driver
}

// rodDriver implements sessionpool.PageDriver on a rod.Page. Every call binds
// the page to the operation context.
type rodDriver struct {
	page *rod.Page

	mu      sync.Mutex
	lastURL string
}

func (d *rodDriver) Navigate(ctx context.Context, url, waitUntil string) error {
	page := d.page.Context(ctx)

	var wait func()
	switch waitUntil {
	case WaitDOMContentLoaded:
		wait = page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	case WaitNetworkIdle:
		wait = page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	}

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if wait != nil {
		wait()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
	} else if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	d.refreshURL(page)
	return nil
}

func (d *rodDriver) Click(ctx context.Context, selector string) error {
	page := d.page.Context(ctx)
	el, err := findElement(page, selector)
	if err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	d.refreshURL(page)
	return nil
}

func (d *rodDriver) Type(ctx context.Context, selector, text string) error {
	el, err := findElement(d.page.Context(ctx), selector)
	if err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

func (d *rodDriver) Fill(ctx context.Context, selector, text string) error {
	el, err := findElement(d.page.Context(ctx), selector)
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (d *rodDriver) ExtractText(ctx context.Context, selector string) ([]string, error) {
	page := d.page.Context(ctx)
	if selector == "" {
		body, err := page.Element("body")
		if err != nil {
			return nil, fmt.Errorf("no body element found: %w", err)
		}
		text, err := body.Text()
		if err != nil {
			return nil, fmt.Errorf("text extraction failed: %w", err)
		}
		return []string{text}, nil
	}

	elements, err := page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	texts := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("text extraction failed: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (d *rodDriver) ExtractHTML(ctx context.Context, selector string) (string, error) {
	page := d.page.Context(ctx)
	if selector == "" {
		html, err := page.HTML()
		if err != nil {
			return "", fmt.Errorf("content extraction failed: %w", err)
		}
		return html, nil
	}

	el, err := findElement(page, selector)
	if err != nil {
		return "", fmt.Errorf("html extraction failed: %w", err)
	}
	res, err := el.Eval(`() => this.innerHTML`)
	if err != nil {
		return "", fmt.Errorf("html extraction failed: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *rodDriver) Screenshot(ctx context.Context, path string, fullPage bool) error {
	data, err := d.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

func (d *rodDriver) WaitFor(ctx context.Context, selector string) error {
	// Element retries until the selector matches or ctx expires.
	if _, err := findElement(d.page.Context(ctx), selector); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

func (d *rodDriver) Scroll(ctx context.Context, selector string) error {
	page := d.page.Context(ctx)
	if selector == "" {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return fmt.Errorf("scroll failed: %w", err)
		}
		return nil
	}

	el, err := findElement(page, selector)
	if err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (d *rodDriver) GoBack(ctx context.Context) error {
	page := d.page.Context(ctx)
	if err := page.NavigateBack(); err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	d.refreshURL(page)
	return nil
}

func (d *rodDriver) GoForward(ctx context.Context) error {
	page := d.page.Context(ctx)
	if err := page.NavigateForward(); err != nil {
		return fmt.Errorf("go forward failed: %w", err)
	}
	d.refreshURL(page)
	return nil
}

func (d *rodDriver) Title(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("title lookup failed: %w", err)
	}
	return info.Title, nil
}

// CurrentURL asks the browser for the target URL and falls back to the last
// URL seen when the lookup fails.
func (d *rodDriver) CurrentURL() string {
	d.refreshURL(d.page.Timeout(urlLookupTimeout))

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastURL
}

func (d *rodDriver) refreshURL(page *rod.Page) {
	info, err := page.Info()
	if err != nil {
		return
	}
	d.mu.Lock()
	d.lastURL = info.URL
	d.mu.Unlock()
}

// textSelectorPrefix selects an element by its visible text, as in "text=Add to Cart".
const textSelectorPrefix = "text="

// clickableSelector narrows text matches to elements a user would click,
// in document order.
const clickableSelector = "a, button, [role=button], input[type=submit], input[type=button], label, summary, option, li, span, p, h1, h2, h3, h4, h5, h6"

// findElement resolves selector on page. Text selectors match the first
// clickable element whose text contains the given string, ignoring case.
func findElement(page *rod.Page, selector string) (*rod.Element, error) {
	if text, ok := strings.CutPrefix(selector, textSelectorPrefix); ok {
		return page.ElementR(clickableSelector, "/"+regexp.QuoteMeta(strings.TrimSpace(text))+"/i")
	}
	return page.Element(selector)
}
