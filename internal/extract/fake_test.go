package extract

import (
	"context"
	"fmt"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/session"
)

// fakeElement is a node of a fake document; children are found by locator value
type fakeElement struct {
	text     string
	children map[string][]*fakeElement
}

func (e *fakeElement) Locate(loc model.Locator) (session.Element, error) {
	if kids := e.children[loc.Value]; len(kids) > 0 {
		return kids[0], nil
	}
	return nil, fmt.Errorf("%w: %s", session.ErrElementNotFound, loc)
}

func (e *fakeElement) LocateAll(loc model.Locator) ([]session.Element, error) {
	var out []session.Element
	for _, k := range e.children[loc.Value] {
		out = append(out, k)
	}
	return out, nil
}

func (e *fakeElement) Text() string { return e.text }

// fakeSession serves one fake document and records interactions
type fakeSession struct {
	*fakeElement
	url    string
	clicks int
}

func (s *fakeSession) Navigate(_ context.Context, rawURL string) error {
	s.url = rawURL
	return nil
}

func (s *fakeSession) URL() string { return s.url }

func (s *fakeSession) Click(context.Context, session.Element) error {
	s.clicks++
	return nil
}

func (s *fakeSession) Submit(context.Context, session.Element) error {
	return session.ErrNotInteractive
}
