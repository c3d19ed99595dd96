package functional

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoPage is returned by HTML driver queries before any page was opened.
var ErrNoPage = errors.New("no page loaded")

// HTMLFactory opens HTML driver sessions.
type HTMLFactory struct {
	transport http.RoundTripper
}

// NewHTMLFactory returns a factory whose sessions use transport
// (http.DefaultTransport when nil).
func NewHTMLFactory(transport http.RoundTripper) *HTMLFactory {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTMLFactory{transport: transport}
}

// NewDriver returns a session with its own cookie jar.
func (f *HTMLFactory) NewDriver(ctx context.Context) (Driver, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTMLDriver{
		client: &http.Client{Transport: f.transport, Jar: jar},
	}, nil
}

// Close is a no-op.
func (f *HTMLFactory) Close(ctx context.Context) error { return nil }

// HTMLDriver emulates a browser with an HTTP client: it follows redirects and
// submits forms the way a browser would, without running scripts.
type HTMLDriver struct {
	client *http.Client
	url    *url.URL
	doc    *html.Node
	status int
}

// Status returns the HTTP status of the last loaded page.
func (d *HTMLDriver) Status() int { return d.status }

// Open loads url.
func (d *HTMLDriver) Open(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return d.do(req)
}

func (d *HTMLDriver) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %s", req.Method, req.URL, resp.Status)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", resp.Request.URL, err)
	}
	d.url = resp.Request.URL
	d.doc = doc
	d.status = resp.StatusCode
	return nil
}

func (d *HTMLDriver) query(selector string) (*html.Node, error) {
	if d.doc == nil {
		return nil, ErrNoPage
	}
	n, err := Query(d.doc, selector)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("element %s not found", selector)
	}
	return n, nil
}

// Title returns the document title.
func (d *HTMLDriver) Title(ctx context.Context) (string, error) {
	if d.doc == nil {
		return "", ErrNoPage
	}
	n, err := Query(d.doc, "title")
	if err != nil {
		return "", err
	}
	return TextContent(n), nil
}

// Text returns the text content of the first element matching selector.
func (d *HTMLDriver) Text(ctx context.Context, selector string) (string, error) {
	n, err := d.query(selector)
	if err != nil {
		return "", err
	}
	return TextContent(n), nil
}

// Attribute returns an attribute of the first element matching selector.
func (d *HTMLDriver) Attribute(ctx context.Context, selector, name string) (string, error) {
	n, err := d.query(selector)
	if err != nil {
		return "", err
	}
	return Attr(n, name), nil
}

// Submit fills the input matching selector and submits its enclosing form,
// carrying every other named input of the form along.
func (d *HTMLDriver) Submit(ctx context.Context, selector, text string) error {
	field, err := d.query(selector)
	if err != nil {
		return err
	}
	form := closest(field, "form")
	if form == nil {
		return fmt.Errorf("element %s is not inside a form", selector)
	}

	values := url.Values{}
	inputs, err := QueryAll(form, "input")
	if err != nil {
		return err
	}
	for _, in := range inputs {
		name := Attr(in, "name")
		if name == "" {
			continue
		}
		if in == field {
			values.Set(name, text)
			continue
		}
		values.Add(name, Attr(in, "value"))
	}
	if Attr(field, "name") == "" {
		return fmt.Errorf("element %s has no name", selector)
	}

	action, err := d.url.Parse(Attr(form, "action"))
	if err != nil {
		return fmt.Errorf("form action: %w", err)
	}

	var req *http.Request
	if strings.EqualFold(Attr(form, "method"), http.MethodPost) {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		action.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
		if err != nil {
			return err
		}
	}
	return d.do(req)
}

// Rows returns the text of each tr of the table matching selector.
func (d *HTMLDriver) Rows(ctx context.Context, selector string) ([]string, error) {
	table, err := d.query(selector)
	if err != nil {
		return nil, err
	}
	trs, err := QueryAll(table, "tr")
	if err != nil {
		return nil, err
	}
	rows := make([]string, 0, len(trs))
	for _, tr := range trs {
		rows = append(rows, TextContent(tr))
	}
	return rows, nil
}

// URL returns the URL of the current page after redirects.
func (d *HTMLDriver) URL(ctx context.Context) (string, error) {
	if d.url == nil {
		return "", ErrNoPage
	}
	return d.url.String(), nil
}

// Close releases idle connections.
func (d *HTMLDriver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
