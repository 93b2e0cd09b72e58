package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/ppiankov/docscrape/internal/model"
)

// maxErrorWidth truncates error cells in the summary table
const maxErrorWidth = 60

// RenderJSON writes the report as indented JSON, replacing path atomically
func RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".docscrape-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close report: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// RenderTable prints one row per record and source, then the run totals
func RenderTable(w io.Writer, report *model.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Source", "Steps", "Appended", "Candidates", "Match", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, WidthMax: maxErrorWidth},
	})

	for i, er := range report.Records {
		for _, o := range er.Outcomes {
			t.AppendRow(table.Row{i + 1, o.Source, o.StepsRun, o.Appended, candidates(o), match(o), firstLine(o.Error)})
		}
	}

	tot := report.Totals
	t.AppendFooter(table.Row{
		"", fmt.Sprintf("%d records", tot.Records), "", tot.Appended, "",
		fmt.Sprintf("%d/%d", tot.Matched, tot.Sources), fmt.Sprintf("%d aborted", tot.Aborted),
	})
	t.Render()
}

func candidates(o model.SourceOutcome) string {
	if o.Candidates == 0 && o.Scored == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", o.Scored, o.Candidates)
}

func match(o model.SourceOutcome) string {
	if o.Accepted < 0 {
		return "-"
	}
	return fmt.Sprintf("#%d (%.2f)", o.Accepted+1, o.Score)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
