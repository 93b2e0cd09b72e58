package model

import "time"

// Report is the final in-memory collection of enriched records
type Report struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Records    []EnrichedRecord `json:"records"`
	Totals     Totals           `json:"totals"`
}

// EnrichedRecord pairs a record with what each source contributed to it
type EnrichedRecord struct {
	Record   Record          `json:"record"`
	Outcomes []SourceOutcome `json:"outcomes,omitempty"`
}

// SourceOutcome describes one source applied to one record
type SourceOutcome struct {
	Source   string `json:"source"`              // Source name or address
	Address  string `json:"address"`             // Navigated URL
	FinalURL string `json:"final_url,omitempty"` // Page the session was on when the source finished
	Error    string `json:"error,omitempty"`     // Why the source (or one of its step lists) stopped early
	Aborted  bool   `json:"aborted"`             // A step list was cut short
	StepsRun int    `json:"steps_run"`           // Steps that located their element
	Misses   int    `json:"misses,omitempty"`    // Data steps where no pattern matched
	Appended int    `json:"appended"`            // Values appended to the record

	Candidates int     `json:"candidates,omitempty"` // Candidates found by the result locator
	Scored     int     `json:"scored,omitempty"`     // Candidates evaluated before stopping
	Accepted   int     `json:"accepted"`             // Index of the accepted candidate, -1 if none
	Score      float64 `json:"score,omitempty"`      // Score of the accepted candidate
}

// Totals summarizes a run
type Totals struct {
	Records  int `json:"records"`
	Sources  int `json:"sources"`
	Matched  int `json:"matched"`  // Source applications that accepted a candidate
	Aborted  int `json:"aborted"`  // Source applications cut short by a locate or navigation failure
	Appended int `json:"appended"` // Values appended across all records
}

// Add folds one outcome into the totals
func (t *Totals) Add(o SourceOutcome) {
	if o.Accepted >= 0 {
		t.Matched++
	}
	if o.Aborted {
		t.Aborted++
	}
	t.Appended += o.Appended
}
