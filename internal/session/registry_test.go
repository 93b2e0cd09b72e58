package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/docscrape/internal/model"
)

// textElement is an Element with fixed text
type textElement string

func (e textElement) Locate(model.Locator) (Element, error)      { return nil, ErrElementNotFound }
func (e textElement) LocateAll(model.Locator) ([]Element, error) { return nil, nil }
func (e textElement) Text() string                               { return string(e) }

func TestRegistry_Tests(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		test string
		text string
		arg  string
		want bool
	}{
		{"present", "", "", true},
		{"equals", "Jane Doe", "Jane Doe", true},
		{"equals", "Jane Doe", "jane doe", false},
		{"equals_fold", "JANE  DOE", "jane doe", true},
		{"contains", "Springfield, MA", "Springfield", true},
		{"contains", "Springfield, MA", "springfield", false},
		{"contains_fold", "Springfield, MA", "SPRINGFIELD", true},
		{"contains_fold", "Springfield, MA", "Boston", false},
		{"matches", "Phone: 555-0199", `\d{3}-\d{4}`, true},
		{"matches", "Phone: none", `\d{3}-\d{4}`, false},
		{"matches", "anything", `(`, false},
		{"similar", "Jonathan Smith", "Jonathon Smith", true},
		{"similar", "Jane Doe", "Robert Brown", false},
		{"similar", "", "", true},
		{"similar", "", "Jane", false},
		{"same_date", "March 3, 2021", "2021-03-03", true},
		{"same_date", "2021-03-03 14:00", "03/03/2021", true},
		{"same_date", "2021-03-04", "2021-03-03", false},
		{"same_date", "not a date", "2021-03-03", false},
	}

	for _, tt := range tests {
		t.Run(tt.test+"/"+tt.text+"/"+tt.arg, func(t *testing.T) {
			fn, ok := r.Test(tt.test)
			if !ok {
				t.Fatalf("test capability %q missing", tt.test)
			}
			if got := fn(textElement(tt.text), tt.arg); got != tt.want {
				t.Errorf("%s(%q, %q) = %v, want %v", tt.test, tt.text, tt.arg, got, tt.want)
			}
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"click", "submit"} {
		if !r.HasAction(name) {
			t.Errorf("missing action %q", name)
		}
	}
	if r.HasAction("hover") || r.HasTest("fuzzy") {
		t.Error("unexpected capability")
	}

	actions, tests, strategies := r.Names()
	if len(actions) != 2 || len(tests) != 8 || len(strategies) != len(finders) {
		t.Errorf("Names() = %v / %v / %v", actions, tests, strategies)
	}
}

func TestRegistry_CheckLocator(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		loc     model.Locator
		wantErr bool
	}{
		{model.Locator{Strategy: "css", Value: "li.result > a[href]"}, false},
		{model.Locator{Strategy: "css", Value: "li[unclosed"}, true},
		{model.Locator{Strategy: "link text", Value: "Next"}, false},
		{model.Locator{Strategy: "xpath", Value: "//a"}, true},
		{model.Locator{Strategy: "id", Value: "  "}, true},
	}
	for _, tt := range tests {
		err := r.CheckLocator(tt.loc)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckLocator(%s) = %v, wantErr %v", tt.loc, err, tt.wantErr)
		}
	}
}

// recordingSession captures action invocations
type recordingSession struct {
	Session
	calls []string
}

func (s *recordingSession) Click(_ context.Context, _ Element) error {
	s.calls = append(s.calls, "click")
	return nil
}

func (s *recordingSession) Submit(_ context.Context, _ Element) error {
	s.calls = append(s.calls, "submit")
	return errors.New("boom")
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry()
	s := &recordingSession{}
	ctx := context.Background()

	if err := r.Invoke(ctx, s, "click", textElement("")); err != nil {
		t.Errorf("click: %v", err)
	}
	if err := r.Invoke(ctx, s, "submit", textElement("")); err == nil {
		t.Error("expected submit error to propagate")
	}
	if err := r.Invoke(ctx, s, "hover", textElement("")); err == nil {
		t.Error("expected unknown action error")
	}
	if len(s.calls) != 2 || s.calls[0] != "click" || s.calls[1] != "submit" {
		t.Errorf("calls = %v", s.calls)
	}
}
