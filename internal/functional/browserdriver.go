package functional

import (
	"context"
	"time"

	"superlists/internal/browser"
)

// BrowserOptions configures the Chrome-backed driver.
type BrowserOptions struct {
	Bin               string
	Flags             []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// BrowserFactory hands out incognito Chrome sessions from one browser process.
type BrowserFactory struct {
	sm *browser.SessionManager
}

// NewBrowserFactory creates a factory. Chrome is launched on first use.
func NewBrowserFactory(opts BrowserOptions) *BrowserFactory {
	cfg := browser.DefaultConfig()
	cfg.Bin = opts.Bin
	cfg.Flags = opts.Flags
	cfg.Headless = opts.Headless
	cfg.ViewportWidth = opts.ViewportWidth
	cfg.ViewportHeight = opts.ViewportHeight
	cfg.NavigationTimeout = opts.NavigationTimeout
	return &BrowserFactory{sm: browser.NewSessionManager(cfg)}
}

// NewDriver opens a blank page in a fresh incognito context.
func (f *BrowserFactory) NewDriver(ctx context.Context) (Driver, error) {
	sess, err := f.sm.CreateSession(ctx, "")
	if err != nil {
		return nil, err
	}
	return &browserDriver{sm: f.sm, id: sess.ID}, nil
}

// Close shuts Chrome down.
func (f *BrowserFactory) Close(ctx context.Context) error {
	return f.sm.Shutdown(ctx)
}

type browserDriver struct {
	sm *browser.SessionManager
	id string
}

func (d *browserDriver) Open(ctx context.Context, url string) error {
	return d.sm.Navigate(ctx, d.id, url)
}

func (d *browserDriver) Title(ctx context.Context) (string, error) {
	title, _, err := d.sm.Info(ctx, d.id)
	return title, err
}

func (d *browserDriver) Text(ctx context.Context, selector string) (string, error) {
	return d.sm.Text(ctx, d.id, selector)
}

func (d *browserDriver) Attribute(ctx context.Context, selector, name string) (string, error) {
	return d.sm.Attribute(ctx, d.id, selector, name)
}

func (d *browserDriver) Submit(ctx context.Context, selector, text string) error {
	return d.sm.Submit(ctx, d.id, selector, text)
}

func (d *browserDriver) Rows(ctx context.Context, selector string) ([]string, error) {
	return d.sm.TextAll(ctx, d.id, selector+" tr")
}

func (d *browserDriver) URL(ctx context.Context) (string, error) {
	_, url, err := d.sm.Info(ctx, d.id)
	return url, err
}

func (d *browserDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.sm.Screenshot(ctx, d.id, true)
}

func (d *browserDriver) Close() error {
	return d.sm.CloseSession(d.id)
}
