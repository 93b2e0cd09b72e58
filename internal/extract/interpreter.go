package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
)

// Interpreter executes declarative steps against a live session
type Interpreter struct {
	session  session.Session
	caps     *session.Registry
	matchers *rules.MatcherRegistry
	logger   *slog.Logger
}

// NewInterpreter creates an interpreter over one shared session
func NewInterpreter(s session.Session, caps *session.Registry, matchers *rules.MatcherRegistry, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{session: s, caps: caps, matchers: matchers, logger: logger}
}

// StepResult describes one executed step
type StepResult struct {
	Step     rules.Step
	Value    string // Appended value for a data step
	Appended bool
	Miss     bool // Data step whose text matched none of the field's patterns
}

// Exec runs one step. The context element is candidate when the step is scoped
// within-result and a candidate is active, else the document.
func (in *Interpreter) Exec(ctx context.Context, step rules.Step, rec model.Record, candidate session.Element) (StepResult, error) {
	res := StepResult{Step: step}

	var scope session.Scope = in.session
	if step.Scope == model.ScopeWithinResult && candidate != nil {
		scope = candidate
	}

	el, err := scope.Locate(step.Locator)
	if err != nil {
		return res, err
	}

	if !step.Action.IsData() {
		return res, in.caps.Invoke(ctx, in.session, step.Action.Kind, el)
	}

	value, ok := in.matchers.Extract(step.Action.Field, el.Text())
	if !ok {
		res.Miss = true
		in.logger.Debug("extraction miss", "field", step.Action.Field, "locator", step.Locator.String())
		return res, nil
	}

	rec.Append(step.Action.Field, value)
	res.Value = value
	res.Appended = true
	return res, nil
}

// Run executes steps in order. The first failing step aborts the rest of the
// list; the results of the steps that ran are returned with the error.
func (in *Interpreter) Run(ctx context.Context, steps []rules.Step, rec model.Record, candidate session.Element) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := in.Exec(ctx, step, rec, candidate)
		if err != nil {
			return results, fmt.Errorf("step %d (%s %s): %w", i, step.Locator, step.Action, err)
		}
		results = append(results, res)
	}
	return results, nil
}
