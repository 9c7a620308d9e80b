package ledger

import (
	"errors"
	"fmt"
)

// Outcome classifies a ledger lookup.
type Outcome string

const (
	OutcomeFoundPaid     Outcome = "found_paid"
	OutcomeFoundUnpaid   Outcome = "found_unpaid"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeConfigMissing Outcome = "configuration_missing"
	OutcomeError         Outcome = "error"
)

// Record is one row of the external table. Field names and value types are
// owned by the external system.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Result is the answer to Lookup. Status is the raw status value of the
// matched record (empty when absent). Err is set only for OutcomeError.
type Result struct {
	Outcome Outcome
	Status  string
	Table   string
	Record  *Record
	Err     error
}

// Paid reports whether the lookup found a paid record.
func (r Result) Paid() bool { return r.Outcome == OutcomeFoundPaid }

// Found reports whether a matching record was located, paid or not.
func (r Result) Found() bool {
	return r.Outcome == OutcomeFoundPaid || r.Outcome == OutcomeFoundUnpaid
}

// ErrTableNotFound marks a candidate that the ledger does not know about.
// Lookup treats it as a recoverable miss and moves to the next candidate.
var ErrTableNotFound = errors.New("ledger: table not found")

// APIError is a non-success response that is not a missing table.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("ledger: http %d", e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("ledger: http %d: %s", e.StatusCode, e.Type)
	}
	return fmt.Sprintf("ledger: http %d: %s: %s", e.StatusCode, e.Type, e.Message)
}
