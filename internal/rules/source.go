package rules

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/ppiankov/docscrape/internal/model"
	"gopkg.in/yaml.v3"
)

// weightTolerance bounds how far explicit weights may sum away from 1.0
const weightTolerance = 1e-6

// Source is one declarative source definition
type Source struct {
	Name    string
	Address string
	Steps   []Step
	Results *Results
}

// Label names the source in logs and outcomes
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// Step is one locate-then-act-or-extract instruction
type Step struct {
	Locator model.Locator
	Action  Action
	Scope   model.Scope
}

// Action is either a data extraction into Field or a named capability
type Action struct {
	Kind  string
	Field string
}

// IsData reports whether the action extracts text into a record field
func (a Action) IsData() bool {
	return a.Kind == model.ActionData
}

func (a Action) String() string {
	if a.IsData() {
		return "data:" + a.Field
	}
	return a.Kind
}

// Results describes how candidate results on a page are matched to a record
type Results struct {
	Locator  model.Locator
	Criteria []Criterion
	Match    []Step // Steps run after a candidate is accepted
}

// Criterion is one weighted test applied to a sub-element of a candidate
type Criterion struct {
	Locator model.Locator
	Test    Test
	Weight  *float64 // nil when the weight is auto-assigned
}

// Test names a test capability and its argument template
type Test struct {
	Capability string
	Argument   string // May reference record fields as {Field}
}

// Capabilities validates locator strategies and capability names at load time
type Capabilities interface {
	CheckLocator(loc model.Locator) error
	HasAction(name string) bool
	HasTest(name string) bool
}

// sourceParser walks the source document, validating as it goes
type sourceParser struct {
	doc  string
	caps Capabilities
}

func (p *sourceParser) parseSources(root *yaml.Node) ([]Source, error) {
	items, err := sequenceItems(p.doc, "", root)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(items))
	for i, item := range items {
		src, err := p.parseSource(fmt.Sprintf("[%d]", i), item)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (p *sourceParser) parseSource(path string, n *yaml.Node) (Source, error) {
	pairs, err := mappingPairs(p.doc, path, n)
	if err != nil {
		return Source{}, err
	}

	var src Source
	for _, kv := range pairs {
		keyPath := path + "." + kv.Key
		switch kv.Key {
		case "name":
			if src.Name, err = scalarValue(p.doc, keyPath, kv.Value); err != nil {
				return Source{}, err
			}
		case "address":
			if src.Address, err = scalarValue(p.doc, keyPath, kv.Value); err != nil {
				return Source{}, err
			}
		case "steps":
			if src.Steps, err = p.parseSteps(keyPath, kv.Value); err != nil {
				return Source{}, err
			}
		case "results":
			results, err := p.parseResults(keyPath, kv.Value)
			if err != nil {
				return Source{}, err
			}
			src.Results = &results
		default:
			return Source{}, configErrorf(p.doc, keyPath, "unknown key")
		}
	}

	if src.Address == "" {
		return Source{}, configErrorf(p.doc, path, "address is required")
	}
	u, err := url.Parse(src.Address)
	if err != nil || !u.IsAbs() {
		return Source{}, configErrorf(p.doc, path+".address", "not an absolute URL: %q", src.Address)
	}
	return src, nil
}

func (p *sourceParser) parseSteps(path string, n *yaml.Node) ([]Step, error) {
	items, err := sequenceItems(p.doc, path, n)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(items))
	for i, item := range items {
		step, err := p.parseStep(fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (p *sourceParser) parseStep(path string, n *yaml.Node) (Step, error) {
	pairs, err := mappingPairs(p.doc, path, n)
	if err != nil {
		return Step{}, err
	}

	step := Step{Scope: model.ScopeDocument}
	var hasLocator, hasAction bool
	for _, kv := range pairs {
		keyPath := path + "." + kv.Key
		switch kv.Key {
		case "locator", "element":
			if step.Locator, err = p.parseLocator(keyPath, kv.Value); err != nil {
				return Step{}, err
			}
			hasLocator = true
		case "action":
			if step.Action, err = p.parseAction(keyPath, kv.Value); err != nil {
				return Step{}, err
			}
			hasAction = true
		case "scope":
			scope, err := scalarValue(p.doc, keyPath, kv.Value)
			if err != nil {
				return Step{}, err
			}
			switch model.Scope(scope) {
			case model.ScopeDocument, model.ScopeWithinResult:
				step.Scope = model.Scope(scope)
			default:
				return Step{}, configErrorf(p.doc, keyPath, "unknown scope %q (want %q or %q)",
					scope, model.ScopeDocument, model.ScopeWithinResult)
			}
		default:
			return Step{}, configErrorf(p.doc, keyPath, "unknown key")
		}
	}

	if !hasLocator {
		return Step{}, configErrorf(p.doc, path, "locator is required")
	}
	if !hasAction {
		return Step{}, configErrorf(p.doc, path, "action is required")
	}
	return step, nil
}

// parseLocator accepts {strategy, value} or [strategy, value]
func (p *sourceParser) parseLocator(path string, n *yaml.Node) (model.Locator, error) {
	var loc model.Locator

	if rn := resolve(n); rn != nil && rn.Kind == yaml.SequenceNode {
		items := rn.Content
		if len(items) != 2 {
			return loc, configErrorf(p.doc, path, "locator list needs [strategy, value], got %d items", len(items))
		}
		var err error
		if loc.Strategy, err = scalarValue(p.doc, path+"[0]", items[0]); err != nil {
			return loc, err
		}
		if loc.Value, err = scalarValue(p.doc, path+"[1]", items[1]); err != nil {
			return loc, err
		}
	} else {
		pairs, err := mappingPairs(p.doc, path, n)
		if err != nil {
			return loc, err
		}
		for _, kv := range pairs {
			switch kv.Key {
			case "strategy", "by":
				loc.Strategy, err = scalarValue(p.doc, path+"."+kv.Key, kv.Value)
			case "value":
				loc.Value, err = scalarValue(p.doc, path+"."+kv.Key, kv.Value)
			default:
				err = configErrorf(p.doc, path+"."+kv.Key, "unknown key")
			}
			if err != nil {
				return loc, err
			}
		}
	}

	if err := p.caps.CheckLocator(loc); err != nil {
		return loc, &ConfigError{Doc: p.doc, Path: path, Err: err}
	}
	return loc, nil
}

// parseAction accepts "click", [click], [data, Field] or {kind, field}
func (p *sourceParser) parseAction(path string, n *yaml.Node) (Action, error) {
	var act Action
	rn := resolve(n)

	switch {
	case rn != nil && rn.Kind == yaml.ScalarNode:
		act.Kind = rn.Value
	case rn != nil && rn.Kind == yaml.SequenceNode:
		if len(rn.Content) == 0 || len(rn.Content) > 2 {
			return act, configErrorf(p.doc, path, "action list needs [kind] or [data, field]")
		}
		var err error
		if act.Kind, err = scalarValue(p.doc, path+"[0]", rn.Content[0]); err != nil {
			return act, err
		}
		if len(rn.Content) == 2 {
			if act.Field, err = scalarValue(p.doc, path+"[1]", rn.Content[1]); err != nil {
				return act, err
			}
		}
	default:
		pairs, err := mappingPairs(p.doc, path, n)
		if err != nil {
			return act, err
		}
		for _, kv := range pairs {
			switch kv.Key {
			case "kind":
				act.Kind, err = scalarValue(p.doc, path+".kind", kv.Value)
			case "field":
				act.Field, err = scalarValue(p.doc, path+".field", kv.Value)
			default:
				err = configErrorf(p.doc, path+"."+kv.Key, "unknown key")
			}
			if err != nil {
				return act, err
			}
		}
	}

	if act.IsData() {
		if act.Field == "" {
			return act, configErrorf(p.doc, path, "data action needs a field")
		}
		return act, nil
	}
	if act.Field != "" {
		return act, configErrorf(p.doc, path, "action %q takes no field", act.Kind)
	}
	if !p.caps.HasAction(act.Kind) {
		return act, configErrorf(p.doc, path, "unknown action capability %q", act.Kind)
	}
	return act, nil
}

func (p *sourceParser) parseResults(path string, n *yaml.Node) (Results, error) {
	pairs, err := mappingPairs(p.doc, path, n)
	if err != nil {
		return Results{}, err
	}

	var res Results
	var hasLocator bool
	for _, kv := range pairs {
		keyPath := path + "." + kv.Key
		switch kv.Key {
		case "locator", "element":
			if res.Locator, err = p.parseLocator(keyPath, kv.Value); err != nil {
				return Results{}, err
			}
			hasLocator = true
		case "criteria":
			if res.Criteria, err = p.parseCriteria(keyPath, kv.Value); err != nil {
				return Results{}, err
			}
		case "match":
			matchPairs, err := mappingPairs(p.doc, keyPath, kv.Value)
			if err != nil {
				return Results{}, err
			}
			for _, mkv := range matchPairs {
				if mkv.Key != "steps" {
					return Results{}, configErrorf(p.doc, keyPath+"."+mkv.Key, "unknown key")
				}
				if res.Match, err = p.parseSteps(keyPath+".steps", mkv.Value); err != nil {
					return Results{}, err
				}
			}
		default:
			return Results{}, configErrorf(p.doc, keyPath, "unknown key")
		}
	}

	if !hasLocator {
		return Results{}, configErrorf(p.doc, path, "locator is required")
	}
	if len(res.Criteria) == 0 {
		return Results{}, configErrorf(p.doc, path, "at least one criterion is required")
	}
	if err := checkWeights(res.Criteria); err != nil {
		return Results{}, &ConfigError{Doc: p.doc, Path: path + ".criteria", Err: err}
	}
	return res, nil
}

func (p *sourceParser) parseCriteria(path string, n *yaml.Node) ([]Criterion, error) {
	items, err := sequenceItems(p.doc, path, n)
	if err != nil {
		return nil, err
	}

	criteria := make([]Criterion, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		pairs, err := mappingPairs(p.doc, itemPath, item)
		if err != nil {
			return nil, err
		}

		var c Criterion
		var hasLocator, hasTest bool
		for _, kv := range pairs {
			keyPath := itemPath + "." + kv.Key
			switch kv.Key {
			case "locator", "element":
				if c.Locator, err = p.parseLocator(keyPath, kv.Value); err != nil {
					return nil, err
				}
				hasLocator = true
			case "test":
				if c.Test, err = p.parseTest(keyPath, kv.Value); err != nil {
					return nil, err
				}
				hasTest = true
			case "weight":
				raw, err := scalarValue(p.doc, keyPath, kv.Value)
				if err != nil {
					return nil, err
				}
				w, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, configErrorf(p.doc, keyPath, "weight is not a number: %q", raw)
				}
				c.Weight = &w
			default:
				return nil, configErrorf(p.doc, keyPath, "unknown key")
			}
		}

		if !hasLocator {
			return nil, configErrorf(p.doc, itemPath, "locator is required")
		}
		if !hasTest {
			return nil, configErrorf(p.doc, itemPath, "test is required")
		}
		criteria = append(criteria, c)
	}
	return criteria, nil
}

// parseTest accepts "present", [capability, argument] or {capability, argument}
func (p *sourceParser) parseTest(path string, n *yaml.Node) (Test, error) {
	var t Test
	rn := resolve(n)

	switch {
	case rn != nil && rn.Kind == yaml.ScalarNode:
		t.Capability = rn.Value
	case rn != nil && rn.Kind == yaml.SequenceNode:
		if len(rn.Content) == 0 || len(rn.Content) > 2 {
			return t, configErrorf(p.doc, path, "test list needs [capability] or [capability, argument]")
		}
		var err error
		if t.Capability, err = scalarValue(p.doc, path+"[0]", rn.Content[0]); err != nil {
			return t, err
		}
		if len(rn.Content) == 2 {
			if t.Argument, err = scalarValue(p.doc, path+"[1]", rn.Content[1]); err != nil {
				return t, err
			}
		}
	default:
		pairs, err := mappingPairs(p.doc, path, n)
		if err != nil {
			return t, err
		}
		for _, kv := range pairs {
			switch kv.Key {
			case "capability", "name":
				t.Capability, err = scalarValue(p.doc, path+"."+kv.Key, kv.Value)
			case "argument", "arg":
				t.Argument, err = scalarValue(p.doc, path+"."+kv.Key, kv.Value)
			default:
				err = configErrorf(p.doc, path+"."+kv.Key, "unknown key")
			}
			if err != nil {
				return t, err
			}
		}
	}

	if !p.caps.HasTest(t.Capability) {
		return t, configErrorf(p.doc, path, "unknown test capability %q", t.Capability)
	}
	return t, nil
}

// checkWeights enforces all-or-nothing weighting and a 1.0 total for explicit weights
func checkWeights(criteria []Criterion) error {
	weighted := 0
	sum := 0.0
	for i, c := range criteria {
		if c.Weight == nil {
			continue
		}
		if *c.Weight < 0 || math.IsNaN(*c.Weight) {
			return fmt.Errorf("criterion %d: weight must be non-negative", i)
		}
		weighted++
		sum += *c.Weight
	}

	if weighted == 0 {
		return nil
	}
	if weighted != len(criteria) {
		return fmt.Errorf("%d of %d criteria carry a weight; weight all of them or none", weighted, len(criteria))
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("explicit weights sum to %g, want 1.0", sum)
	}
	return nil
}
