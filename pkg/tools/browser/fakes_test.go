package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

const examplePage = `<html>
<head><title>Example Domain</title></head>
<body>
  <h1>Example Domain</h1>
  <p>This domain is for use in illustrative examples.</p>
  <form><input name="q"><button>Search</button></form>
  <a href="https://www.iana.org/domains/example">More information...</a>
</body>
</html>`

var errNoElement = errors.New("no element matches selector")

type fakeResource struct {
	driver *fakeDriver
}

func (r *fakeResource) Driver() sessionpool.PageDriver {
	return r.driver
}

type fakeProvider struct {
	mu      sync.Mutex
	created int
	drivers []*fakeDriver
}

func (p *fakeProvider) Create(ctx context.Context) (sessionpool.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	d := &fakeDriver{url: "about:blank", html: examplePage, title: "Example Domain"}
	p.drivers = append(p.drivers, d)
	return &fakeResource{driver: d}, nil
}

func (p *fakeProvider) Destroy(res sessionpool.Resource) error { return nil }
func (p *fakeProvider) Release() error                         { return nil }

func (p *fakeProvider) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// fakeDriver records the last selector and serves canned page content.
type fakeDriver struct {
	mu       sync.Mutex
	url      string
	html     string
	title    string
	texts    []string
	selector string
	history  []string
	err      error
}

func (d *fakeDriver) record(selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selector = selector
	return d.err
}

func (d *fakeDriver) lastSelector() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selector
}

func (d *fakeDriver) Navigate(ctx context.Context, url, waitUntil string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.history = append(d.history, d.url)
	d.url = url
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error { return d.record(selector) }

func (d *fakeDriver) Type(ctx context.Context, selector, text string) error {
	return d.record(selector)
}

func (d *fakeDriver) Fill(ctx context.Context, selector, text string) error {
	return d.record(selector)
}

func (d *fakeDriver) ExtractText(ctx context.Context, selector string) ([]string, error) {
	if err := d.record(selector); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts, nil
}

func (d *fakeDriver) ExtractHTML(ctx context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.html, d.err
}

func (d *fakeDriver) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if d.err != nil {
		return d.err
	}
	return os.WriteFile(path, []byte("png"), 0600)
}

// WaitFor never finds its element; it returns when ctx expires.
func (d *fakeDriver) WaitFor(ctx context.Context, selector string) error {
	_ = d.record(selector)
	<-ctx.Done()
	return fmt.Errorf("waiting for %s: %w", selector, ctx.Err())
}

func (d *fakeDriver) Scroll(ctx context.Context, selector string) error {
	return d.record(selector)
}

func (d *fakeDriver) GoBack(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.history); n > 0 {
		d.url = d.history[n-1]
		d.history = d.history[:n-1]
	}
	return d.err
}

func (d *fakeDriver) GoForward(ctx context.Context) error { return d.err }

func (d *fakeDriver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, d.err
}

func (d *fakeDriver) CurrentURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// newTestTool builds a tool over a two-session pool with sequential ids.
func newTestTool(t *testing.T, allowed ...string) (*Tool, *fakeProvider, *sessionpool.Pool) {
	t.Helper()

	provider := &fakeProvider{}
	var mu sync.Mutex
	next := 0
	pool, err := sessionpool.New(provider, sessionpool.Options{
		MaxSessions:      2,
		AllowedDomains:   allowed,
		OperationTimeout: time.Second,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			next++
			return fmt.Sprintf("s%d", next)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown() })

	tool := New(pool, Options{
		ScreenshotsDir: t.TempDir(),
		Now: func() time.Time {
			return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
		},
	})
	return tool, provider, pool
}

// driverFor returns the fake driver behind the live session id.
func driverFor(t *testing.T, pool *sessionpool.Pool, id string) *fakeDriver {
	t.Helper()
	s, err := pool.Get(id)
	require.NoError(t, err)
	return s.Driver().(*fakeDriver)
}
