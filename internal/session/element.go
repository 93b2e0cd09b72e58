package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/docscrape/internal/model"
	"golang.org/x/net/html"
)

// page is one loaded document
type page struct {
	url *url.URL
	doc *goquery.Document
}

// element is a single located node of a page
type element struct {
	sel  *goquery.Selection
	page *page
}

func (e *element) Locate(loc model.Locator) (Element, error) {
	return locateFirst(e.page, e.sel, loc)
}

func (e *element) LocateAll(loc model.Locator) ([]Element, error) {
	return locateAll(e.page, e.sel, loc)
}

func (e *element) Text() string {
	if len(e.sel.Nodes) == 0 {
		return ""
	}
	return collapse(nodeText(e.sel.Nodes[0]))
}

func (e *element) String() string {
	return "<" + goquery.NodeName(e.sel) + ">"
}

func locateFirst(p *page, root *goquery.Selection, loc model.Locator) (Element, error) {
	matches, err := find(root, loc)
	if err != nil {
		return nil, err
	}
	if matches.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return &element{sel: matches.First(), page: p}, nil
}

func locateAll(p *page, root *goquery.Selection, loc model.Locator) ([]Element, error) {
	matches, err := find(root, loc)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{sel: s, page: p})
	})
	return out, nil
}

// blockTags separate their text from neighbours
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// nodeText returns the text of n's subtree. Block elements are padded with
// spaces so adjacent blocks do not run together; collapse tidies the result.
func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}

		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}
