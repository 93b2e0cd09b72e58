package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/docscrape/internal/model"
	"gopkg.in/yaml.v3"
)

// RuleSet is the loaded, validated set of rule documents
type RuleSet struct {
	Aliases  *AliasTable
	Matchers *MatcherRegistry
	Sources  []Source
}

// LoadAliases reads an alias document and builds the alias table
func LoadAliases(path string) (*AliasTable, error) {
	root, err := readOrderedDocument(path)
	if err != nil {
		return nil, err
	}
	spec, err := parseAliasSpec(path, root)
	if err != nil {
		return nil, err
	}
	return BuildAliasTable(spec), nil
}

// LoadMatchers reads a matcher document and compiles its patterns
func LoadMatchers(path string) (*MatcherRegistry, error) {
	root, err := readOrderedDocument(path)
	if err != nil {
		return nil, err
	}
	spec, err := parseMatcherSpec(path, root)
	if err != nil {
		return nil, err
	}
	reg, err := BuildMatcherRegistry(spec)
	if err != nil {
		return nil, &ConfigError{Doc: path, Err: err}
	}
	return reg, nil
}

// readOrderedDocument reads a document whose mapping key order is significant.
// JSON5 objects decode into Go maps, so those documents are refused.
func readOrderedDocument(path string) (*yaml.Node, error) {
	if strings.EqualFold(filepath.Ext(path), ".json5") {
		return nil, configErrorf(path, "", "JSON5 does not keep field order; use YAML or JSON")
	}
	return readDocument(path)
}

// LoadSources reads a source document, validating locators and capability names
func LoadSources(path string, caps Capabilities) ([]Source, error) {
	root, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	p := &sourceParser{doc: path, caps: caps}
	return p.parseSources(root)
}

// Load reads all three rule documents. Any error is a *ConfigError.
func Load(cfg model.RulesConfig, caps Capabilities) (*RuleSet, error) {
	aliases, err := LoadAliases(cfg.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}

	matchers, err := LoadMatchers(cfg.MatcherFile)
	if err != nil {
		return nil, fmt.Errorf("load matchers: %w", err)
	}

	sources, err := LoadSources(cfg.SourcesFile, caps)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	return &RuleSet{Aliases: aliases, Matchers: matchers, Sources: sources}, nil
}

// UnmatchedDataFields lists data-action fields that have no matcher patterns.
// Such steps always miss; "rules check" reports them.
func (rs *RuleSet) UnmatchedDataFields() []string {
	seen := make(map[string]bool)
	var out []string
	visit := func(steps []Step) {
		for _, step := range steps {
			f := step.Action.Field
			if step.Action.IsData() && !seen[f] && len(rs.Matchers.Patterns(f)) == 0 {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	for _, src := range rs.Sources {
		visit(src.Steps)
		if src.Results != nil {
			visit(src.Results.Match)
		}
	}
	return out
}
