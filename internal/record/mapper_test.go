package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAliases() *rules.AliasTable {
	return rules.BuildAliasTable(rules.AliasSpec{
		{Field: "Email", Generators: []rules.AliasGenerator{
			{Literal: "email"},
			{Slots: [][]string{{"work", "home"}, {"email", "mail"}}},
		}},
		{Field: "Last Name", Generators: []rules.AliasGenerator{
			{Slots: [][]string{{"last", "family"}, {"name"}}},
		}},
	})
}

func TestMapper_Map(t *testing.T) {
	m := NewMapper(testAliases())
	row := Row{
		{Name: "last name", Value: "Doe"},
		{Name: "work email", Value: "jd@corp.example"},
		{Name: "email", Value: ""},
		{Name: "home_mail", Value: "jd@home.example"},
		{Name: "Shoe size", Value: "42"},
		{Name: "Shoe size", Value: "43"},
	}

	rec := m.Map(row)
	assert.Equal(t, []string{"Doe"}, rec.Values("Last Name"))
	assert.Equal(t, []string{"jd@corp.example", "", "jd@home.example"}, rec.Values("Email"))
	assert.Equal(t, []string{"42", "43"}, rec.Values(model.OtherField))
	assert.Equal(t, len(row), rec.Count())

	assert.Equal(t, []string{"Shoe size"}, m.Unmapped(row))
}

func TestMapper_Conservation(t *testing.T) {
	m := NewMapper(testAliases())
	rows := []Row{
		nil,
		{{Name: "", Value: "x"}},
		{{Name: "email", Value: "a"}, {Name: "email", Value: "a"}},
		{{Name: "family-name", Value: "b"}, {Name: "unknown", Value: "c"}, {Name: "work/mail", Value: "d"}},
	}

	for i, row := range rows {
		rec := m.Map(row)
		assert.Equal(t, len(row), rec.Count(), "row %d", i)
	}
}

func TestParseCSV(t *testing.T) {
	input := "First Name,email,email,Notes\n" +
		"Jane,j@a.example,j@b.example,\"likes, commas\"\n" +
		"John,john@example.org\n" +
		"Ann,a@x.example,,n,extra\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{
		{"First Name", "Jane"}, {"email", "j@a.example"}, {"email", "j@b.example"}, {"Notes", "likes, commas"},
	}, rows[0])
	assert.Len(t, rows[1], 2)
	assert.Equal(t, Cell{Name: "", Value: "extra"}, rows[2][4])
}

func TestParseCSV_Empty(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestImport_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFemail,Last Name\njane@example.org,Doe\n"), 0o644))

	records, err := Import(path, NewMapper(testAliases()))
	require.NoError(t, err)
	require.Len(t, records, 1)

	got, ok := records[0].First("Email")
	require.True(t, ok)
	assert.Equal(t, "jane@example.org", got)
	// "Last Name" itself is not a generated alias
	assert.Equal(t, []string{"Doe"}, records[0].Values(model.OtherField))
}

func TestImport_MissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "nope.csv"), NewMapper(testAliases()))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
