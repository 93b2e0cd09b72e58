package session

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/ppiankov/docscrape/internal/model"
)

// finder selects the descendants of a selection that match one locator value
type finder func(root *goquery.Selection, value string) *goquery.Selection

var finders = map[string]finder{
	"css":               findCSS,
	"css selector":      findCSS,
	"id":                findAttr("id"),
	"name":              findAttr("name"),
	"class":             findClass,
	"class name":        findClass,
	"tag":               findTag,
	"tag name":          findTag,
	"link text":         findLinkText(false),
	"partial link text": findLinkText(true),
}

// checkLocator validates a locator without a document
func checkLocator(loc model.Locator) error {
	if _, ok := finders[loc.Strategy]; !ok {
		return fmt.Errorf("unknown locator strategy %q", loc.Strategy)
	}
	if strings.TrimSpace(loc.Value) == "" {
		return fmt.Errorf("locator %q has an empty value", loc.Strategy)
	}
	if loc.Strategy == "css" || loc.Strategy == "css selector" {
		if _, err := cascadia.Compile(loc.Value); err != nil {
			return fmt.Errorf("invalid css selector %q: %w", loc.Value, err)
		}
	}
	return nil
}

// find runs a locator under root, returning matches in document order
func find(root *goquery.Selection, loc model.Locator) (*goquery.Selection, error) {
	f, ok := finders[loc.Strategy]
	if !ok {
		return nil, fmt.Errorf("unknown locator strategy %q", loc.Strategy)
	}
	return f(root, loc.Value), nil
}

func findCSS(root *goquery.Selection, value string) *goquery.Selection {
	sel, err := cascadia.Compile(value)
	if err != nil {
		return root.Slice(0, 0)
	}
	return root.FindMatcher(sel)
}

func findAttr(attr string) finder {
	return func(root *goquery.Selection, value string) *goquery.Selection {
		return root.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr(attr)
			return ok && v == value
		})
	}
}

func findClass(root *goquery.Selection, value string) *goquery.Selection {
	return root.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(value)
	})
}

func findTag(root *goquery.Selection, value string) *goquery.Selection {
	tag := strings.ToLower(value)
	return root.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == tag
	})
}

func findLinkText(partial bool) finder {
	return func(root *goquery.Selection, value string) *goquery.Selection {
		return root.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			text := collapse(s.Text())
			if partial {
				return strings.Contains(text, value)
			}
			return text == value
		})
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
