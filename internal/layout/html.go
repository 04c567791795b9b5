package layout

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor lays out HTML files. h1-h6 become heading blocks, b and
// strong become bold runs, and <title> supplies the metadata title.
type HTMLExtractor struct{}

func (h *HTMLExtractor) Extract(r io.Reader, name string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	f := &flow{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				lb := &lineBuilder{}
				htmlInlines(lb, n, headingSize(level), true)
				f.add(lb.done())
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "head", "noscript":
				return
			case "p", "li", "td", "th", "blockquote", "pre", "dt", "dd", "figcaption":
				lb := &lineBuilder{}
				htmlInlines(lb, n, bodySize, false)
				f.add(lb.done())
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	return f.document(name, findTitle(root)), nil
}

func htmlInlines(lb *lineBuilder, n *html.Node, size float64, bold bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			t := strings.Join(strings.Fields(c.Data), " ")
			if t == "" {
				continue
			}
			// Keep word boundaries that whitespace collapsing would lose.
			if strings.TrimLeft(c.Data, " \t\r\n") != c.Data {
				t = " " + t
			}
			if strings.TrimRight(c.Data, " \t\r\n") != c.Data {
				t += " "
			}
			lb.write(t, size, bold)
		case html.ElementNode:
			switch c.Data {
			case "br":
				lb.newline()
			case "script", "style":
			case "b", "strong":
				htmlInlines(lb, c, size, true)
			default:
				htmlInlines(lb, c, size, bold)
			}
		}
	}
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
