package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/araddon/dateparse"
	"github.com/ppiankov/docscrape/internal/model"
	"golang.org/x/text/cases"
)

// similarThreshold is the Jaro-Winkler similarity the "similar" test requires
const similarThreshold = 0.9

// ActionFunc performs an interactive capability on an element
type ActionFunc func(ctx context.Context, s Session, el Element) error

// TestFunc evaluates a test capability on an element with a rendered argument
type TestFunc func(el Element, arg string) bool

// Registry maps capability names to typed handlers.
// Rule loading validates against it so unknown names fail before any navigation.
type Registry struct {
	actions map[string]ActionFunc
	tests   map[string]TestFunc
}

// NewRegistry returns a registry holding the built-in capabilities
func NewRegistry() *Registry {
	r := &Registry{
		actions: make(map[string]ActionFunc),
		tests:   make(map[string]TestFunc),
	}

	r.RegisterAction("click", func(ctx context.Context, s Session, el Element) error {
		return s.Click(ctx, el)
	})
	r.RegisterAction("submit", func(ctx context.Context, s Session, el Element) error {
		return s.Submit(ctx, el)
	})

	r.RegisterTest("present", func(Element, string) bool { return true })
	r.RegisterTest("equals", textTest(func(text, arg string) bool { return text == arg }))
	r.RegisterTest("equals_fold", textTest(func(text, arg string) bool { return fold(text) == fold(arg) }))
	r.RegisterTest("contains", textTest(strings.Contains))
	r.RegisterTest("contains_fold", textTest(func(text, arg string) bool {
		return strings.Contains(fold(text), fold(arg))
	}))
	r.RegisterTest("matches", textTest(func(text, pattern string) bool {
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(text)
	}))
	r.RegisterTest("similar", textTest(similar))
	r.RegisterTest("same_date", textTest(sameDate))

	return r
}

// RegisterAction adds or replaces an action capability
func (r *Registry) RegisterAction(name string, fn ActionFunc) {
	r.actions[name] = fn
}

// RegisterTest adds or replaces a test capability
func (r *Registry) RegisterTest(name string, fn TestFunc) {
	r.tests[name] = fn
}

// Action returns the handler for an action capability
func (r *Registry) Action(name string) (ActionFunc, bool) {
	fn, ok := r.actions[name]
	return fn, ok
}

// Test returns the handler for a test capability
func (r *Registry) Test(name string) (TestFunc, bool) {
	fn, ok := r.tests[name]
	return fn, ok
}

// HasAction reports whether an action capability exists
func (r *Registry) HasAction(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// HasTest reports whether a test capability exists
func (r *Registry) HasTest(name string) bool {
	_, ok := r.tests[name]
	return ok
}

// CheckLocator validates a locator strategy and, for CSS, its selector syntax
func (r *Registry) CheckLocator(loc model.Locator) error {
	return checkLocator(loc)
}

// Invoke runs a named action on el
func (r *Registry) Invoke(ctx context.Context, s Session, name string, el Element) error {
	fn, ok := r.actions[name]
	if !ok {
		return fmt.Errorf("unknown action capability %q", name)
	}
	return fn(ctx, s, el)
}

// Names lists the registered actions, tests and locator strategies, sorted
func (r *Registry) Names() (actions, tests, strategies []string) {
	for name := range r.actions {
		actions = append(actions, name)
	}
	for name := range r.tests {
		tests = append(tests, name)
	}
	for name := range finders {
		strategies = append(strategies, name)
	}
	sort.Strings(actions)
	sort.Strings(tests)
	sort.Strings(strategies)
	return actions, tests, strategies
}

func textTest(fn func(text, arg string) bool) TestFunc {
	return func(el Element, arg string) bool {
		return fn(el.Text(), arg)
	}
}

func fold(s string) string {
	return cases.Fold().String(collapse(s))
}

func similar(text, arg string) bool {
	a, b := fold(text), fold(arg)
	if a == "" || b == "" {
		return a == b
	}
	return matchr.JaroWinkler(a, b, false) >= similarThreshold
}

func sameDate(text, arg string) bool {
	a, err := dateparse.ParseAny(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	b, err := dateparse.ParseAny(strings.TrimSpace(arg))
	if err != nil {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
