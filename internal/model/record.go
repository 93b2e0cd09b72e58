package model

import "sort"

// OtherField is the canonical bucket for raw field names with no registered alias
const OtherField = "Other"

// Record holds the evidence gathered for one seed row.
// Values per canonical field are append-only and kept in arrival order.
type Record map[string][]string

// NewRecord creates an empty record
func NewRecord() Record {
	return make(Record)
}

// Append adds a value to the end of a field's list
func (r Record) Append(field, value string) {
	r[field] = append(r[field], value)
}

// First returns the first accumulated value for a field
func (r Record) First(field string) (string, bool) {
	values := r[field]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns all values for a field (nil if none)
func (r Record) Values(field string) []string {
	return r[field]
}

// Fields returns the canonical field names in sorted order
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Count returns the total number of values across all fields
func (r Record) Count() int {
	n := 0
	for _, values := range r {
		n += len(values)
	}
	return n
}
