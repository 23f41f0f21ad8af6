package models

import (
	"database/sql/driver"
	"fmt"
)

// Decision is the moderation outcome of a ban record. It is stored in the
// status column; the legacy confirmed flag is derived from it.
type Decision string

const (
	DecisionPending  Decision = "waiting"
	DecisionApproved Decision = "confirmed"
	DecisionRejected Decision = "denied"

	// legacyRejected is written by older intake bots.
	legacyRejected = "deny"
)

// ParseDecision normalizes a stored status value. Unrecognized values,
// including the empty string, are returned verbatim so a single bad row can
// be reported instead of failing the whole query.
func ParseDecision(s string) Decision {
	switch s {
	case string(DecisionPending):
		return DecisionPending
	case string(DecisionApproved):
		return DecisionApproved
	case string(DecisionRejected), legacyRejected:
		return DecisionRejected
	default:
		return Decision(s)
	}
}

// Valid reports whether d is one of the three known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// Settled reports whether a moderator has decided the case.
func (d Decision) Settled() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Scan implements sql.Scanner. The status column is NOT NULL.
func (d *Decision) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return fmt.Errorf("status is NULL")
	case string:
		*d = ParseDecision(v)
	case []byte:
		*d = ParseDecision(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Decision", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Decision) Value() (driver.Value, error) {
	if d == "" {
		return string(DecisionPending), nil
	}
	return string(d), nil
}
