package record

import (
	"github.com/ppiankov/docscrape/internal/model"
)

// Cell is one raw (field name, value) pair of an input row
type Cell struct {
	Name  string
	Value string
}

// Row is one raw input row in column order. Duplicate names are distinct columns.
type Row []Cell

// Lookup resolves raw field names to canonical ones
type Lookup interface {
	Lookup(name string) string
	Has(name string) bool
}

// Mapper normalizes raw rows into canonical records
type Mapper struct {
	aliases Lookup
}

// NewMapper creates a mapper over an alias table
func NewMapper(aliases Lookup) *Mapper {
	return &Mapper{aliases: aliases}
}

// Map appends every cell of row to its canonical field, in column order.
// No value is dropped: Count() of the result equals len(row).
func (m *Mapper) Map(row Row) model.Record {
	rec := model.NewRecord()
	for _, c := range row {
		rec.Append(m.aliases.Lookup(c.Name), c.Value)
	}
	return rec
}

// Unmapped returns the raw names in row that fell into the Other bucket, first occurrence order
func (m *Mapper) Unmapped(row Row) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range row {
		if m.aliases.Has(c.Name) || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c.Name)
	}
	return out
}
