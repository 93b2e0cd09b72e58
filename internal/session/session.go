package session

import (
	"context"
	"errors"

	"github.com/ppiankov/docscrape/internal/model"
)

var (
	// ErrElementNotFound means a locator matched nothing in its scope
	ErrElementNotFound = errors.New("element not found")
	// ErrNavigationTimeout means a page did not load within the implicit wait budget
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrDisallowed means robots.txt forbids the address
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrNotInteractive means an action was invoked on an element that cannot perform it
	ErrNotInteractive = errors.New("element is not interactive")
)

// Scope locates elements beneath a root (the document or an element)
type Scope interface {
	// Locate returns the first match in document order or ErrElementNotFound
	Locate(loc model.Locator) (Element, error)
	// LocateAll returns every match in document order; no match is an empty list
	LocateAll(loc model.Locator) ([]Element, error)
}

// Element is a located element of the current page
type Element interface {
	Scope
	// Text returns the element text with whitespace collapsed
	Text() string
}

// Session is a live document the interpreter drives
type Session interface {
	Scope
	Navigate(ctx context.Context, rawURL string) error
	URL() string
	Click(ctx context.Context, el Element) error
	Submit(ctx context.Context, el Element) error
}
