package rules

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/docscrape/internal/model"
	"gopkg.in/yaml.v3"
)

// separators joins token tuples; order decides which field owns a colliding alias
var separators = []string{"", " ", "-", "_", "/"}

// AliasGenerator is one alias generator: either a literal name
// or a list of token slots expanded into every joined combination
type AliasGenerator struct {
	Literal string
	Slots   [][]string // nil for a literal
}

// IsLiteral reports whether the generator registers a single literal alias
func (g AliasGenerator) IsLiteral() bool {
	return g.Slots == nil
}

// FieldAliases lists the alias generators of one canonical field
type FieldAliases struct {
	Field      string
	Generators []AliasGenerator
}

// AliasSpec is the alias document, fields in document order
type AliasSpec []FieldAliases

// AliasTable maps observed field names to canonical field names.
// It is immutable once built; unknown names resolve to model.OtherField.
type AliasTable struct {
	aliases map[string]string
}

// BuildAliasTable expands an alias spec into a lookup table.
// Later registrations overwrite earlier ones.
func BuildAliasTable(spec AliasSpec) *AliasTable {
	t := &AliasTable{aliases: make(map[string]string)}

	for _, fa := range spec {
		for _, gen := range fa.Generators {
			if gen.IsLiteral() {
				t.aliases[gen.Literal] = fa.Field
				continue
			}

			product(gen.Slots, func(tuple []string) {
				for _, sep := range separators {
					joined := strings.Join(tuple, sep)
					if hasLetter(joined) {
						t.aliases[joined] = fa.Field
					}
				}
			})
		}
	}

	return t
}

// Lookup returns the canonical field for a raw field name
func (t *AliasTable) Lookup(name string) string {
	if field, ok := t.aliases[name]; ok {
		return field
	}
	return model.OtherField
}

// Has reports whether a raw field name is registered
func (t *AliasTable) Has(name string) bool {
	_, ok := t.aliases[name]
	return ok
}

// Len returns the number of registered aliases
func (t *AliasTable) Len() int {
	return len(t.aliases)
}

// Aliases returns the sorted aliases that resolve to a field
func (t *AliasTable) Aliases(field string) []string {
	var out []string
	for alias, f := range t.aliases {
		if f == field {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// product calls emit for every tuple of the Cartesian product of slots,
// rightmost slot varying fastest. The tuple slice is reused between calls.
func product(slots [][]string, emit func([]string)) {
	for _, s := range slots {
		if len(s) == 0 {
			return
		}
	}

	idx := make([]int, len(slots))
	tuple := make([]string, len(slots))
	for {
		for i, s := range slots {
			tuple[i] = s[idx[i]]
		}
		emit(tuple)

		i := len(slots) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(slots[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// parseAliasSpec reads {field: [literal | [slot, ...]]} from a document node
func parseAliasSpec(doc string, root *yaml.Node) (AliasSpec, error) {
	fields, err := mappingPairs(doc, "", root)
	if err != nil {
		return nil, err
	}

	spec := make(AliasSpec, 0, len(fields))
	for _, f := range fields {
		items, err := sequenceItems(doc, f.Key, f.Value)
		if err != nil {
			return nil, err
		}

		fa := FieldAliases{Field: f.Key}
		for i, item := range items {
			path := fmt.Sprintf("%s[%d]", f.Key, i)
			gen, err := parseAliasGenerator(doc, path, item)
			if err != nil {
				return nil, err
			}
			fa.Generators = append(fa.Generators, gen)
		}
		spec = append(spec, fa)
	}
	return spec, nil
}

func parseAliasGenerator(doc, path string, n *yaml.Node) (AliasGenerator, error) {
	n = resolve(n)
	if n != nil && n.Kind == yaml.ScalarNode {
		return AliasGenerator{Literal: n.Value}, nil
	}

	slotNodes, err := sequenceItems(doc, path, n)
	if err != nil {
		return AliasGenerator{}, err
	}

	slots := make([][]string, 0, len(slotNodes))
	for j, sn := range slotNodes {
		slotPath := fmt.Sprintf("%s[%d]", path, j)
		sn = resolve(sn)
		if sn != nil && sn.Kind == yaml.ScalarNode {
			slots = append(slots, []string{sn.Value})
			continue
		}

		variants, err := sequenceItems(doc, slotPath, sn)
		if err != nil {
			return AliasGenerator{}, err
		}
		slot := make([]string, 0, len(variants))
		for k, v := range variants {
			token, err := scalarValue(doc, fmt.Sprintf("%s[%d]", slotPath, k), v)
			if err != nil {
				return AliasGenerator{}, err
			}
			slot = append(slot, token)
		}
		slots = append(slots, slot)
	}
	return AliasGenerator{Slots: slots}, nil
}
