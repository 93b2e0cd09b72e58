package model

import "fmt"

// Locator identifies an element by strategy and value (e.g. css "li.result")
type Locator struct {
	Strategy string `json:"strategy" yaml:"strategy"`
	Value    string `json:"value" yaml:"value"`
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.Strategy, l.Value)
}

// Scope selects the context element a step runs against
type Scope string

const (
	ScopeDocument     Scope = "document"      // Root document of the session
	ScopeWithinResult Scope = "within-result" // Candidate accepted by result matching
)

// ActionData is the action kind that extracts text into a record field
const ActionData = "data"
