package sessionpool

import (
	"context"
)

// PageDriver is the page-level capability exposed by a live Resource.
// Every call is bounded by ctx; implementations translate its deadline into
// whatever timeout the underlying engine understands.
type PageDriver interface {
	// Navigate loads url and waits until the given lifecycle state
	// ("load", "domcontentloaded" or "networkidle").
	Navigate(ctx context.Context, url, waitUntil string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Type types text into the element key by key.
	Type(ctx context.Context, selector, text string) error

	// Fill replaces the value of an input element.
	Fill(ctx context.Context, selector, text string) error

	// ExtractText returns the text of every element matching selector, or
	// the body text as a single entry when selector is empty.
	ExtractText(ctx context.Context, selector string) ([]string, error)

	// ExtractHTML returns the inner HTML of the first element matching
	// selector, or the full page content when selector is empty.
	ExtractHTML(ctx context.Context, selector string) (string, error)

	// Screenshot writes a PNG capture of the page to path.
	Screenshot(ctx context.Context, path string, fullPage bool) error

	// WaitFor blocks until an element matching selector appears.
	WaitFor(ctx context.Context, selector string) error

	// Scroll scrolls the element into view, or to the bottom of the page
	// when selector is empty.
	Scroll(ctx context.Context, selector string) error

	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// CurrentURL returns the URL the page is currently showing.
	CurrentURL() string
}

// Resource is an opaque handle produced by a ResourceProvider. The pool never
// inspects it beyond asking for its driver.
type Resource interface {
	Driver() PageDriver
}

// ResourceProvider creates and tears down resources. Create must be safe to
// call concurrently with Create and Destroy on other resources. Destroy is not
// required to be idempotent; the pool calls it at most once per resource.
type ResourceProvider interface {
	Create(ctx context.Context) (Resource, error)
	Destroy(res Resource) error

	// Release frees process-wide state such as the engine handle. It is
	// called once by Pool.Shutdown after every session is gone.
	Release() error
}
