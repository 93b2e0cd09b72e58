package score

import (
	"log/slog"
	"math"
	"regexp"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
)

// Threshold is the confidence a candidate must strictly exceed to be accepted
const Threshold = 0.75

// scorePrecision is the grid explicit-weight sums are rounded to before the threshold test
const scorePrecision = 1e9

// placeholder matches {Field} references in test argument templates
var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Check is the outcome of one criterion against one candidate
type Check struct {
	Capability string        `json:"capability"`
	Locator    model.Locator `json:"locator"`
	Argument   string        `json:"argument"` // Rendered template
	Weight     float64       `json:"weight"`
	Found      bool          `json:"found"` // Sub-element located
	Passed     bool          `json:"passed"`
}

// Result is a candidate's score with its per-criterion breakdown
type Result struct {
	Score  float64 `json:"score"`
	Checks []Check `json:"checks"`
}

// Accepted reports whether the result clears the threshold
func (r Result) Accepted() bool {
	return Accept(r.Score)
}

// Accept applies the exclusive confidence threshold
func Accept(score float64) bool {
	return score > Threshold
}

// Scorer evaluates weighted criteria against candidate elements
type Scorer struct {
	caps   *session.Registry
	logger *slog.Logger
}

// NewScorer creates a scorer resolving test capabilities from caps
func NewScorer(caps *session.Registry, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{caps: caps, logger: logger}
}

// DefaultWeights assigns weights to n unweighted criteria. The ascending
// sequence 1..n is normalized by its sum, then handed out largest first in
// declared order: the first criterion gets n/sum, the last 1/sum.
func DefaultWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}

	sum := float64(n*(n+1)) / 2
	ascending := make([]float64, n)
	for i := range ascending {
		ascending[i] = float64(i+1) / sum
	}

	weights := make([]float64, 0, n)
	for len(ascending) > 0 {
		last := len(ascending) - 1
		weights = append(weights, ascending[last])
		ascending = ascending[:last]
	}
	return weights
}

// ResolveWeights returns the explicit weights when every criterion carries
// one, otherwise the default assignment
func ResolveWeights(criteria []rules.Criterion) []float64 {
	if !explicit(criteria) {
		return DefaultWeights(len(criteria))
	}
	weights := make([]float64, len(criteria))
	for i, c := range criteria {
		weights[i] = *c.Weight
	}
	return weights
}

func explicit(criteria []rules.Criterion) bool {
	for _, c := range criteria {
		if c.Weight == nil {
			return false
		}
	}
	return len(criteria) > 0
}

// Score sums the weights of the criteria whose test passes on candidate.
// A criterion whose sub-element cannot be located counts as failed.
//
// Default weights are summed as integer ranks and divided once, so a score
// that is exactly 0.75 stays exactly 0.75. Explicit weight sums are rounded
// to scorePrecision.
func (s *Scorer) Score(criteria []rules.Criterion, candidate session.Element, rec model.Record) Result {
	weights := ResolveWeights(criteria)
	ranked := !explicit(criteria)
	n := len(criteria)
	res := Result{Checks: make([]Check, 0, n)}

	var (
		rankSum int
		sum     float64
	)

	for i, c := range criteria {
		check := Check{
			Capability: c.Test.Capability,
			Locator:    c.Locator,
			Argument:   Render(c.Test.Argument, rec),
			Weight:     weights[i],
		}

		// 1. Locate the sub-element relative to the candidate
		el, err := candidate.Locate(c.Locator)
		if err != nil {
			res.Checks = append(res.Checks, check)
			continue
		}
		check.Found = true

		// 2. Run the test capability on it
		test, ok := s.caps.Test(c.Test.Capability)
		if !ok {
			s.logger.Warn("unknown test capability", "capability", c.Test.Capability)
			res.Checks = append(res.Checks, check)
			continue
		}
		if test(el, check.Argument) {
			check.Passed = true
			rankSum += n - i
			sum += check.Weight
		}
		res.Checks = append(res.Checks, check)
	}

	if ranked && n > 0 {
		res.Score = float64(rankSum) / float64(n*(n+1)/2)
	} else {
		res.Score = math.Round(sum*scorePrecision) / scorePrecision
	}
	return res
}

// Match is the first accepted candidate of a result list
type Match struct {
	Index     int
	Candidate session.Element
	Result    Result
}

// FindFirst scores candidates in document order and stops at the first one
// accepted. It returns the match (nil if none) and how many candidates were scored.
func (s *Scorer) FindFirst(criteria []rules.Criterion, candidates []session.Element, rec model.Record) (*Match, int) {
	for i, candidate := range candidates {
		res := s.Score(criteria, candidate, rec)
		s.logger.Debug("candidate scored", "index", i, "score", res.Score, "accepted", res.Accepted())
		if res.Accepted() {
			return &Match{Index: i, Candidate: candidate, Result: res}, i + 1
		}
	}
	return nil, len(candidates)
}

// Render substitutes {Field} with the first value of that record field.
// Fields without values render as empty strings.
func Render(template string, rec model.Record) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		value, _ := rec.First(m[1 : len(m)-1])
		return value
	})
}
