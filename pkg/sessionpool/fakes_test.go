package sessionpool

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeResource struct {
	n      int
	driver *fakeDriver
}

func (r *fakeResource) Driver() PageDriver {
	return r.driver
}

type fakeProvider struct {
	mu         sync.Mutex
	created    int
	destroyed  map[*fakeResource]int
	live       int
	peakLive   int
	released   int
	createErr  error
	destroyErr error

	// block, when set, makes Create signal started and wait for release.
	block   chan struct{}
	started chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{destroyed: make(map[*fakeResource]int)}
}

func (p *fakeProvider) Create(ctx context.Context) (Resource, error) {
	p.mu.Lock()
	block, started := p.block, p.started
	p.mu.Unlock()

	if block != nil {
		started <- struct{}{}
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created++
	p.live++
	if p.live > p.peakLive {
		p.peakLive = p.live
	}
	return &fakeResource{n: p.created, driver: &fakeDriver{url: blankURL}}, nil
}

func (p *fakeProvider) Destroy(res Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := res.(*fakeResource)
	p.destroyed[r]++
	p.live--
	return p.destroyErr
}

func (p *fakeProvider) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	return nil
}

func (p *fakeProvider) destroyCount(s *Session) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed[s.resource.(*fakeResource)]
}

func (p *fakeProvider) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *fakeProvider) stats() (created, live, peak int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created, p.live, p.peakLive
}

var errFakeDriver = errors.New("element not found")

type fakeDriver struct {
	mu  sync.Mutex
	url string
	err error
}

func (d *fakeDriver) Navigate(ctx context.Context, url, waitUntil string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.url = url
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error     { return d.err }
func (d *fakeDriver) Type(ctx context.Context, selector, text string) error { return d.err }
func (d *fakeDriver) Fill(ctx context.Context, selector, text string) error { return d.err }

func (d *fakeDriver) ExtractText(ctx context.Context, selector string) ([]string, error) {
	return []string{"text"}, d.err
}

func (d *fakeDriver) ExtractHTML(ctx context.Context, selector string) (string, error) {
	return "<html></html>", d.err
}

func (d *fakeDriver) Screenshot(ctx context.Context, path string, fullPage bool) error { return d.err }

// WaitFor blocks until ctx is done, standing in for a selector that never appears.
func (d *fakeDriver) WaitFor(ctx context.Context, selector string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDriver) Scroll(ctx context.Context, selector string) error { return d.err }
func (d *fakeDriver) GoBack(ctx context.Context) error                  { return d.err }
func (d *fakeDriver) GoForward(ctx context.Context) error               { return d.err }

func (d *fakeDriver) Title(ctx context.Context) (string, error) {
	return "Example", d.err
}

func (d *fakeDriver) CurrentURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}
func (l *recordingLogger) Infof(string, ...interface{})  {}
func (l *recordingLogger) Errorf(string, ...interface{}) {}

func (l *recordingLogger) Warnf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, format)
}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}
