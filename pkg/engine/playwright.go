package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

// PlaywrightProvider creates sessions as isolated contexts of one shared
// Chromium instance.
type PlaywrightProvider struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	opts     Options
	released bool
}

// NewPlaywrightProvider installs the Playwright driver if needed, starts it,
// and launches Chromium.
func NewPlaywrightProvider(opts Options) (*PlaywrightProvider, error) {
	opts.normalize()

	// Keep driver output off the terminal.
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.BrowserPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.BrowserPath)
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	opts.Logger.Infof("Playwright Chromium launched (headless=%v)", opts.Headless)
	return &PlaywrightProvider{pw: pw, browser: browser, opts: opts}, nil
}

// Create opens a new browser context with a single page.
func (p *PlaywrightProvider) Create(ctx context.Context) (sessionpool.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	browser, released := p.browser, p.released
	p.mu.Unlock()
	if released {
		return nil, errors.New("playwright provider released")
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  p.opts.ViewportWidth,
			Height: p.opts.ViewportHeight,
		},
		UserAgent: playwright.String(p.opts.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(DefaultPageTimeout.Milliseconds()))

	return &playwrightResource{
		context: bctx,
		driver:  &playwrightDriver{page: page},
	}, nil
}

// Destroy closes the session's context and every page in it.
func (p *PlaywrightProvider) Destroy(res sessionpool.Resource) error {
	r, ok := res.(*playwrightResource)
	if !ok {
		return fmt.Errorf("unexpected resource type %T", res)
	}
	if err := r.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

// Release closes the browser and stops the Playwright driver.
func (p *PlaywrightProvider) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}
	p.released = true

	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type playwrightResource struct {
	context playwright.BrowserContext
	driver  *playwrightDriver
}

func (r *playwrightResource) Driver() sessionpool.PageDriver {
	return r.driver
}

// playwrightDriver implements sessionpool.PageDriver on a playwright.Page.
type playwrightDriver struct {
	page playwright.Page
}

func (d *playwrightDriver) Navigate(ctx context.Context, url, waitUntil string) error {
	if waitUntil == "" {
		waitUntil = WaitLoad
	}
	state := playwright.WaitUntilState(waitUntil)
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &state,
		Timeout:   timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("navigation failed", err)
	}
	return nil
}

func (d *playwrightDriver) Click(ctx context.Context, selector string) error {
	err := d.page.Click(selector, playwright.PageClickOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("click failed", err)
	}
	return nil
}

func (d *playwrightDriver) Type(ctx context.Context, selector, text string) error {
	err := d.page.Locator(selector).First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("type failed", err)
	}
	return nil
}

func (d *playwrightDriver) Fill(ctx context.Context, selector, text string) error {
	err := d.page.Fill(selector, text, playwright.PageFillOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("fill failed", err)
	}
	return nil
}

func (d *playwrightDriver) ExtractText(ctx context.Context, selector string) ([]string, error) {
	if selector == "" {
		text, err := d.page.InnerText("body", playwright.PageInnerTextOptions{
			Timeout: timeoutMillis(ctx),
		})
		if err != nil {
			return nil, playwrightError("text extraction failed", err)
		}
		return []string{text}, nil
	}

	elements, err := d.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, playwrightError("selector query failed", err)
	}
	texts := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := el.TextContent()
		if err != nil {
			return nil, playwrightError("text extraction failed", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (d *playwrightDriver) ExtractHTML(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		content, err := d.page.Content()
		if err != nil {
			return "", playwrightError("content extraction failed", err)
		}
		return content, nil
	}

	html, err := d.page.InnerHTML(selector, playwright.PageInnerHTMLOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return "", playwrightError("html extraction failed", err)
	}
	return html, nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context, path string, fullPage bool) error {
	_, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
		Timeout:  timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("screenshot failed", err)
	}
	return nil
}

func (d *playwrightDriver) WaitFor(ctx context.Context, selector string) error {
	_, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("wait failed", err)
	}
	return nil
}

func (d *playwrightDriver) Scroll(ctx context.Context, selector string) error {
	if selector == "" {
		if _, err := d.page.Evaluate("window.scrollTo(0, document.body.scrollHeight)"); err != nil {
			return playwrightError("scroll failed", err)
		}
		return nil
	}

	err := d.page.Locator(selector).First().ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: timeoutMillis(ctx),
	})
	if err != nil {
		return playwrightError("scroll failed", err)
	}
	return nil
}

func (d *playwrightDriver) GoBack(ctx context.Context) error {
	if _, err := d.page.GoBack(playwright.PageGoBackOptions{Timeout: timeoutMillis(ctx)}); err != nil {
		return playwrightError("go back failed", err)
	}
	return nil
}

func (d *playwrightDriver) GoForward(ctx context.Context) error {
	if _, err := d.page.GoForward(playwright.PageGoForwardOptions{Timeout: timeoutMillis(ctx)}); err != nil {
		return playwrightError("go forward failed", err)
	}
	return nil
}

func (d *playwrightDriver) Title(ctx context.Context) (string, error) {
	title, err := d.page.Title()
	if err != nil {
		return "", playwrightError("title lookup failed", err)
	}
	return title, nil
}

func (d *playwrightDriver) CurrentURL() string {
	return d.page.URL()
}

// playwrightError wraps err and marks Playwright timeouts as deadline
// expiry so the pool classifies them as operation timeouts.
func playwrightError(msg string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", msg, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
