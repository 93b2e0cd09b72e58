package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/record"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<form action="/results" method="get">
  <input name="q" value="">
  <input type="submit" value="Search">
</form>
<div id="phone">Switchboard: +1 555 010 0100</div>
</body></html>`

const resultsPage = `<html><body><ul>
  <li class="hit"><span class="name">John Smith</span><span class="city">Boston</span>
      <span class="email">john@smith.example</span></li>
  <li class="hit"><span class="name">Jane Doe</span><span class="city">Springfield, MA</span>
      <span class="email">jane@doe.example</span></li>
  <li class="hit"><span class="name">Jane Doe</span><span class="city">Springfield, IL</span>
      <span class="email">other@doe.example</span></li>
</ul></body></html>`

const aliasDoc = `
First Name:
  - [first, name]
Last Name:
  - [last, name]
City:
  - city
`

const matcherDoc = `
Email:
  - ['[\w.+-]+', '@', '[\w-]+\.\w+']
Phone:
  - '\+\d[\d ]+\d'
`

const sourcesDoc = `
- name: directory
  address: %[1]s/
  steps:
    - locator: [id, phone]
      action: [data, Phone]
    - locator: [css, "form input[type=submit]"]
      action: [click]
  results:
    locator: [css, li.hit]
    criteria:
      - locator: [css, .name]
        test: [similar, "{First Name} {Last Name}"]
      - locator: [css, .city]
        test: [contains_fold, "{City}"]
    match:
      steps:
        - locator: [css, .email]
          action: [data, Email]
          scope: within-result
- name: broken
  address: %[1]s/
  steps:
    - locator: [css, .does-not-exist]
      action: [data, Email]
    - locator: [id, phone]
      action: [data, Phone]
- name: offline
  address: %[1]s/gone
`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, searchPage)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, resultsPage)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestPipeline(t *testing.T, srv *httptest.Server) (*Pipeline, *rules.RuleSet) {
	t.Helper()
	return newPipelineWithSources(t, fmt.Sprintf(sourcesDoc, srv.URL))
}

func newPipelineWithSources(t *testing.T, sources string) (*Pipeline, *rules.RuleSet) {
	t.Helper()
	dir := t.TempDir()
	caps := session.NewRegistry()

	rs, err := rules.Load(model.RulesConfig{
		MappingFile: writeFile(t, dir, "field-mapping.yaml", aliasDoc),
		MatcherFile: writeFile(t, dir, "matchers.yaml", matcherDoc),
		SourcesFile: writeFile(t, dir, "sources.yaml", sources),
	}, caps)
	require.NoError(t, err)

	cfg := model.DefaultConfig().Session
	cfg.RespectRobots = false
	cfg.ImplicitWait = 5 * time.Second
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	browser, err := session.NewBrowser(cfg, session.WithLogger(logger))
	require.NoError(t, err)

	return NewPipeline(rs, browser, caps, logger), rs
}

func seedRecords(t *testing.T, rs *rules.RuleSet) []model.Record {
	t.Helper()
	rows, err := record.ParseCSV(strings.NewReader("first name,last-name,city,notes\nJane,Doe,Springfield,vip\n"))
	require.NoError(t, err)

	m := record.NewMapper(rs.Aliases)
	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, m.Map(row))
	}
	return records
}

func TestPipeline_Run(t *testing.T) {
	srv := newSite(t)
	p, rs := newTestPipeline(t, srv)
	records := seedRecords(t, rs)

	var seen int
	report, err := p.Run(context.Background(), records, func(int, model.EnrichedRecord) { seen++ })
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	require.Len(t, report.Records, 1)

	rec := report.Records[0].Record
	assert.Equal(t, []string{"+1 555 010 0100"}, rec.Values("Phone"), "broken source aborts before its second phone step")
	assert.Equal(t, []string{"jane@doe.example"}, rec.Values("Email"))
	assert.Equal(t, []string{"vip"}, rec.Values(model.OtherField))

	outcomes := report.Records[0].Outcomes
	require.Len(t, outcomes, 3)

	dir := outcomes[0]
	assert.Equal(t, "directory", dir.Source)
	assert.False(t, dir.Aborted)
	assert.Equal(t, 3, dir.Candidates)
	assert.Equal(t, 2, dir.Scored, "the third candidate is never scored")
	assert.Equal(t, 1, dir.Accepted)
	assert.InDelta(t, 1.0, dir.Score, 1e-9)
	assert.Equal(t, 3, dir.StepsRun)
	assert.Equal(t, 2, dir.Appended)
	assert.Equal(t, srv.URL+"/", dir.Address)
	assert.True(t, strings.HasPrefix(dir.FinalURL, srv.URL+"/results"), dir.FinalURL)

	broken := outcomes[1]
	assert.True(t, broken.Aborted)
	assert.Contains(t, broken.Error, "element not found")
	assert.Zero(t, broken.StepsRun)
	assert.Equal(t, -1, broken.Accepted)

	offline := outcomes[2]
	assert.True(t, offline.Aborted)
	assert.Contains(t, offline.Error, "410")
	assert.Empty(t, offline.FinalURL, "no page is reported for a failed navigation")

	assert.Equal(t, model.Totals{Records: 1, Sources: 3, Matched: 1, Aborted: 2, Appended: 2}, report.Totals)
}

func TestPipeline_DirectStepMissStillMatchesResults(t *testing.T) {
	srv := newSite(t)
	p, _ := newPipelineWithSources(t, fmt.Sprintf(`
- name: listing
  address: %s/results
  steps:
    - locator: [css, .does-not-exist]
      action: [data, Phone]
    - locator: [id, never-reached]
      action: [click]
  results:
    locator: [css, li.hit]
    criteria:
      - locator: [css, .name]
        test: [similar, "{First Name} {Last Name}"]
      - locator: [css, .city]
        test: [contains_fold, "{City}"]
    match:
      steps:
        - locator: [css, .email]
          action: [data, Email]
          scope: within-result
`, srv.URL))

	rec := model.NewRecord()
	rec.Append("First Name", "Jane")
	rec.Append("Last Name", "Doe")
	rec.Append("City", "Springfield")

	outcomes := p.Enrich(context.Background(), rec)
	require.Len(t, outcomes, 1)

	listing := outcomes[0]
	assert.True(t, listing.Aborted, "the direct step list was cut short")
	assert.Contains(t, listing.Error, "element not found")
	assert.Equal(t, 1, listing.Accepted)
	assert.Equal(t, 1, listing.StepsRun, "only the match step ran")
	assert.Equal(t, 1, listing.Appended)
	assert.Equal(t, []string{"jane@doe.example"}, rec.Values("Email"))
	assert.Empty(t, rec.Values("Phone"))
}

func TestPipeline_BelowThresholdSkipsMatchSteps(t *testing.T) {
	srv := newSite(t)
	p, _ := newTestPipeline(t, srv)

	rec := model.NewRecord()
	rec.Append("First Name", "Robert")
	rec.Append("Last Name", "Brown")
	rec.Append("City", "Denver")

	outcomes := p.Enrich(context.Background(), rec)
	dir := outcomes[0]
	assert.Equal(t, -1, dir.Accepted)
	assert.Equal(t, 3, dir.Scored)
	assert.Empty(t, rec.Values("Email"))
	assert.Equal(t, []string{"+1 555 010 0100"}, rec.Values("Phone"))
}

func TestPipeline_Cancelled(t *testing.T) {
	srv := newSite(t)
	p, rs := newTestPipeline(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := p.Run(ctx, seedRecords(t, rs), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Records)
}

func TestRender(t *testing.T) {
	srv := newSite(t)
	p, rs := newTestPipeline(t, srv)
	report, err := p.Run(context.Background(), seedRecords(t, rs), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "enriched.json")
	require.NoError(t, RenderJSON(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded model.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Totals, decoded.Totals)
	assert.Equal(t, []string{"jane@doe.example"}, decoded.Records[0].Record.Values("Email"))

	var buf bytes.Buffer
	RenderTable(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "directory")
	assert.Contains(t, out, "#2 (1.00)")
	assert.Contains(t, out, "2/3")
}
