package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*fakeSession, *Interpreter) {
	t.Helper()

	candidate := &fakeElement{
		text: "Jane Doe jane@corp.example",
		children: map[string][]*fakeElement{
			".email": {{text: "mail: jane@corp.example"}},
		},
	}
	doc := &fakeSession{fakeElement: &fakeElement{
		children: map[string][]*fakeElement{
			".email":  {{text: "info@directory.example"}},
			".phone":  {{text: "call +1 555 010 0199"}},
			".banner": {{text: "no contact data here"}},
			"a.next":  {{text: "Next"}},
			"li":      {candidate},
		},
	}}

	matchers, err := rules.BuildMatcherRegistry(rules.MatcherSpec{
		{Field: "Email", Fragments: [][]string{{`[\w.]+@[\w.]+`}}},
		{Field: "Phone", Fragments: [][]string{{`\+\d[\d ]+\d`}}},
	})
	require.NoError(t, err)

	return doc, NewInterpreter(doc, session.NewRegistry(), matchers, nil)
}

func css(value string) model.Locator {
	return model.Locator{Strategy: "css", Value: value}
}

func dataStep(value, field string, scope model.Scope) rules.Step {
	return rules.Step{Locator: css(value), Action: rules.Action{Kind: model.ActionData, Field: field}, Scope: scope}
}

func TestExec_DataAppends(t *testing.T) {
	_, in := newFixture(t)
	rec := model.NewRecord()

	res, err := in.Exec(context.Background(), dataStep(".phone", "Phone", model.ScopeDocument), rec, nil)
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, "+1 555 010 0199", res.Value)
	assert.Equal(t, []string{"+1 555 010 0199"}, rec.Values("Phone"))
}

func TestExec_ExtractionMissIsSilent(t *testing.T) {
	_, in := newFixture(t)
	rec := model.NewRecord()

	res, err := in.Exec(context.Background(), dataStep(".banner", "Email", model.ScopeDocument), rec, nil)
	require.NoError(t, err)
	assert.True(t, res.Miss)
	assert.False(t, res.Appended)
	assert.Zero(t, rec.Count())
}

func TestExec_Scope(t *testing.T) {
	doc, in := newFixture(t)
	candidate, err := doc.Locate(css("li"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		scope     model.Scope
		candidate session.Element
		want      string
	}{
		{"within result uses candidate", model.ScopeWithinResult, candidate, "jane@corp.example"},
		{"within result without candidate falls back", model.ScopeWithinResult, nil, "info@directory.example"},
		{"document ignores candidate", model.ScopeDocument, candidate, "info@directory.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.NewRecord()
			_, err := in.Exec(context.Background(), dataStep(".email", "Email", tt.scope), rec, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, rec.Values("Email"))
		})
	}
}

func TestExec_Action(t *testing.T) {
	doc, in := newFixture(t)
	step := rules.Step{Locator: css("a.next"), Action: rules.Action{Kind: "click"}, Scope: model.ScopeDocument}

	res, err := in.Exec(context.Background(), step, model.NewRecord(), nil)
	require.NoError(t, err)
	assert.False(t, res.Appended)
	assert.Equal(t, 1, doc.clicks)
}

func TestRun_AbortsOnNotFound(t *testing.T) {
	doc, in := newFixture(t)
	rec := model.NewRecord()
	steps := []rules.Step{
		dataStep(".phone", "Phone", model.ScopeDocument),
		dataStep(".missing", "Email", model.ScopeDocument),
		{Locator: css("a.next"), Action: rules.Action{Kind: "click"}, Scope: model.ScopeDocument},
	}

	results, err := in.Run(context.Background(), steps, rec, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrElementNotFound))
	assert.Len(t, results, 1)
	assert.Equal(t, 1, rec.Count())
	assert.Zero(t, doc.clicks, "steps after the failure must not run")
}

func TestRun_ActionErrorAborts(t *testing.T) {
	_, in := newFixture(t)
	steps := []rules.Step{
		{Locator: css("a.next"), Action: rules.Action{Kind: "submit"}, Scope: model.ScopeDocument},
		dataStep(".phone", "Phone", model.ScopeDocument),
	}
	rec := model.NewRecord()

	results, err := in.Run(context.Background(), steps, rec, nil)
	assert.ErrorIs(t, err, session.ErrNotInteractive)
	assert.Empty(t, results)
	assert.Zero(t, rec.Count())
}

func TestRun_AllSteps(t *testing.T) {
	_, in := newFixture(t)
	rec := model.NewRecord()
	steps := []rules.Step{
		dataStep(".phone", "Phone", model.ScopeDocument),
		dataStep(".banner", "Phone", model.ScopeDocument),
		dataStep(".email", "Email", model.ScopeDocument),
	}

	results, err := in.Run(context.Background(), steps, rec, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[1].Miss)
	assert.Equal(t, 2, rec.Count())
}
