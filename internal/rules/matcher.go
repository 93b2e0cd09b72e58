package rules

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Matcher is the ordered list of extraction patterns for one canonical field
type Matcher struct {
	Field    string
	Patterns []*regexp.Regexp
}

// MatcherSpec maps fields to pattern specs; each spec is a list of
// fragments concatenated before compiling
type MatcherSpec []FieldPatterns

// FieldPatterns lists the pattern fragment lists of one field
type FieldPatterns struct {
	Field     string
	Fragments [][]string
}

// MatcherRegistry holds compiled matchers by field
type MatcherRegistry struct {
	matchers map[string]*Matcher
}

// BuildMatcherRegistry compiles a matcher spec
func BuildMatcherRegistry(spec MatcherSpec) (*MatcherRegistry, error) {
	r := &MatcherRegistry{matchers: make(map[string]*Matcher)}

	for _, fp := range spec {
		m := r.matchers[fp.Field]
		if m == nil {
			m = &Matcher{Field: fp.Field}
			r.matchers[fp.Field] = m
		}

		for i, fragments := range fp.Fragments {
			pattern := strings.Join(fragments, "")
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: compile %q: %w", fp.Field, i, pattern, err)
			}
			m.Patterns = append(m.Patterns, re)
		}
	}

	return r, nil
}

// Patterns returns the ordered patterns for a field (empty if unknown)
func (r *MatcherRegistry) Patterns(field string) []*regexp.Regexp {
	if m, ok := r.matchers[field]; ok {
		return m.Patterns
	}
	return nil
}

// Extract returns the match of the first pattern for field that matches text
func (r *MatcherRegistry) Extract(field, text string) (string, bool) {
	for _, re := range r.Patterns(field) {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[loc[0]:loc[1]], true
		}
	}
	return "", false
}

// Fields returns the number of fields with matchers
func (r *MatcherRegistry) Fields() int {
	return len(r.matchers)
}

// parseMatcherSpec reads {field: [fragment | [fragment, ...]]} from a document node.
// Nested lists (e.g. YAML aliases to shared fragment lists) are flattened.
func parseMatcherSpec(doc string, root *yaml.Node) (MatcherSpec, error) {
	fields, err := mappingPairs(doc, "", root)
	if err != nil {
		return nil, err
	}

	spec := make(MatcherSpec, 0, len(fields))
	for _, f := range fields {
		items, err := sequenceItems(doc, f.Key, f.Value)
		if err != nil {
			return nil, err
		}

		fp := FieldPatterns{Field: f.Key}
		for i, item := range items {
			var fragments []string
			if err := collectFragments(doc, fmt.Sprintf("%s[%d]", f.Key, i), item, &fragments); err != nil {
				return nil, err
			}
			fp.Fragments = append(fp.Fragments, fragments)
		}
		spec = append(spec, fp)
	}
	return spec, nil
}

func collectFragments(doc, path string, n *yaml.Node, out *[]string) error {
	n = resolve(n)
	if n != nil && n.Kind == yaml.ScalarNode {
		*out = append(*out, n.Value)
		return nil
	}

	items, err := sequenceItems(doc, path, n)
	if err != nil {
		return err
	}
	for i, item := range items {
		if err := collectFragments(doc, fmt.Sprintf("%s[%d]", path, i), item, out); err != nil {
			return err
		}
	}
	return nil
}
