// Package functional holds the end-to-end acceptance suite for the to-do app.
//
// Scenarios talk to the application only through a Driver, which models one
// user's browser session. The browser driver uses headless Chrome; the html
// driver is a plain HTTP client with a cookie jar and needs no Chrome.
package functional

import (
	"context"
	"fmt"
)

// Driver is a single browser session.
type Driver interface {
	// Open navigates to url.
	Open(ctx context.Context, url string) error
	// Title returns the document title.
	Title(ctx context.Context) (string, error)
	// Text returns the visible text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute returns an attribute of the first element matching selector.
	Attribute(ctx context.Context, selector, name string) (string, error)
	// Submit types text into the input matching selector and presses Enter.
	Submit(ctx context.Context, selector, text string) error
	// Rows returns the text of every row of the table matching selector.
	Rows(ctx context.Context, selector string) ([]string, error)
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	Close() error
}

// Screenshotter is implemented by drivers that can capture the current page.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Factory opens independent sessions. Two sessions from one factory never
// share cookies.
type Factory interface {
	NewDriver(ctx context.Context) (Driver, error)
	Close(ctx context.Context) error
}

// Driver names accepted by NewFactory.
const (
	DriverBrowser = "browser"
	DriverHTML    = "html"
)

// FactoryOptions configures NewFactory.
type FactoryOptions struct {
	Driver  string
	Browser BrowserOptions
}

// NewFactory returns the factory for the named driver.
func NewFactory(opts FactoryOptions) (Factory, error) {
	switch opts.Driver {
	case DriverHTML:
		return NewHTMLFactory(nil), nil
	case DriverBrowser, "":
		return NewBrowserFactory(opts.Browser), nil
	default:
		return nil, fmt.Errorf("unknown functional driver %q", opts.Driver)
	}
}
