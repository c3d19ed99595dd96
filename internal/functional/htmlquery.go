package functional

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// QueryAll returns every element under root matching the CSS selector sel,
// in document order.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return m.MatchAll(root), nil
}

// Query returns the first element matching sel, or nil.
func Query(root *html.Node, sel string) (*html.Node, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return m.MatchFirst(root), nil
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// TextContent returns the text under n with whitespace runs collapsed,
// roughly what a browser shows for the element.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// closest returns the nearest ancestor of n (or n itself) with the given tag.
func closest(n *html.Node, tag string) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return p
		}
	}
	return nil
}
