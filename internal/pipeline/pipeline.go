package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/docscrape/internal/extract"
	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/score"
	"github.com/ppiankov/docscrape/internal/session"
)

// Pipeline applies every source of a rule set to records, one at a time,
// over a single shared session
type Pipeline struct {
	session session.Session
	interp  *extract.Interpreter
	scorer  *score.Scorer
	sources []rules.Source
	logger  *slog.Logger
}

// NewPipeline wires the interpreter and scorer around a session
func NewPipeline(rs *rules.RuleSet, s session.Session, caps *session.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		session: s,
		interp:  extract.NewInterpreter(s, caps, rs.Matchers, logger),
		scorer:  score.NewScorer(caps, logger),
		sources: rs.Sources,
		logger:  logger,
	}
}

// Progress is called after each record is enriched
type Progress func(index int, er model.EnrichedRecord)

// Run enriches records serially and collects the report. On cancellation the
// report holds the records finished so far and the context error is returned.
func (p *Pipeline) Run(ctx context.Context, records []model.Record, progress Progress) (*model.Report, error) {
	report := &model.Report{
		StartedAt: time.Now().UTC(),
		Records:   make([]model.EnrichedRecord, 0, len(records)),
	}

	var runErr error
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		er := model.EnrichedRecord{Record: rec, Outcomes: p.Enrich(ctx, rec)}
		report.Records = append(report.Records, er)
		report.Totals.Records++
		for _, o := range er.Outcomes {
			report.Totals.Sources++
			report.Totals.Add(o)
		}

		if progress != nil {
			progress(i, er)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, runErr
}

// Enrich applies each source to rec in declared order. Source failures are
// recorded in the outcomes and never stop later sources.
func (p *Pipeline) Enrich(ctx context.Context, rec model.Record) []model.SourceOutcome {
	outcomes := make([]model.SourceOutcome, 0, len(p.sources))
	for _, src := range p.sources {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, p.apply(ctx, src, rec))
	}
	return outcomes
}

func (p *Pipeline) apply(ctx context.Context, src rules.Source, rec model.Record) (out model.SourceOutcome) {
	out = model.SourceOutcome{Source: src.Label(), Address: src.Address, Accepted: -1}
	log := p.logger.With("source", src.Label())

	// 1. Navigate
	if err := p.session.Navigate(ctx, src.Address); err != nil {
		out.Error = err.Error()
		out.Aborted = true
		log.Warn("navigation failed, source skipped", "err", err)
		return out
	}
	log.Debug("navigated", "url", p.session.URL())
	defer func() {
		out.FinalURL = p.session.URL()
	}()

	// 2. Direct steps
	if len(src.Steps) > 0 {
		results, err := p.interp.Run(ctx, src.Steps, rec, nil)
		tally(&out, results)
		if err != nil {
			out.Error = err.Error()
			out.Aborted = true
			log.Warn("steps aborted", "err", err)
			if src.Results == nil {
				return out
			}
		}
	}

	// 3. Result matching
	if src.Results == nil {
		return out
	}
	candidates, err := p.session.LocateAll(src.Results.Locator)
	if err != nil {
		out.Error = err.Error()
		out.Aborted = true
		log.Warn("result lookup failed", "err", err)
		return out
	}
	out.Candidates = len(candidates)

	match, scored := p.scorer.FindFirst(src.Results.Criteria, candidates, rec)
	out.Scored = scored
	if match == nil {
		log.Debug("no candidate above threshold", "candidates", len(candidates), "threshold", score.Threshold)
		return out
	}
	out.Accepted = match.Index
	out.Score = match.Result.Score
	log.Debug("candidate accepted", "index", match.Index, "score", match.Result.Score)

	// 4. Post-match steps, each scoped by its own flag
	if len(src.Results.Match) > 0 {
		results, err := p.interp.Run(ctx, src.Results.Match, rec, match.Candidate)
		tally(&out, results)
		if err != nil {
			out.Error = err.Error()
			out.Aborted = true
			log.Warn("match steps aborted", "err", err)
		}
	}
	return out
}

func tally(out *model.SourceOutcome, results []extract.StepResult) {
	out.StepsRun += len(results)
	for _, r := range results {
		if r.Miss {
			out.Misses++
		}
		if r.Appended {
			out.Appended++
		}
	}
}
