package dispatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Ledger accumulates one outcome per recipient in input order.
// It is mutated only by the engine's single worker goroutine.
type Ledger struct {
	outcomes []Outcome
	failures []Outcome
	sent     int
	failed   int
	skipped  int
}

func NewLedger(capacity int) *Ledger {
	return &Ledger{outcomes: make([]Outcome, 0, capacity)}
}

// Append records an outcome and updates the running counters.
func (l *Ledger) Append(outcome Outcome) {
	l.outcomes = append(l.outcomes, outcome)

	switch {
	case outcome.Status == StatusSent:
		l.sent++
	case outcome.Status == StatusSkipped:
		l.skipped++
	default:
		l.failed++
		l.failures = append(l.failures, outcome)
	}
}

// Outcomes returns every recorded outcome in input recipient order.
func (l *Ledger) Outcomes() []Outcome { return l.outcomes }

// Failures returns the failed outcomes in the order they occurred.
func (l *Ledger) Failures() []Outcome { return l.failures }

func (l *Ledger) Sent() int    { return l.sent }
func (l *Ledger) Failed() int  { return l.failed }
func (l *Ledger) Skipped() int { return l.skipped }

// WriteFailures exports the failure records as CSV with columns
// email, code, error. A zero code is written as an empty cell.
func (l *Ledger) WriteFailures(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"email", "code", "error"}); err != nil {
		return fmt.Errorf("write failure log header: %w", err)
	}

	for _, failure := range l.failures {
		code := ""
		if failure.Code != 0 {
			code = strconv.Itoa(failure.Code)
		}
		if err := cw.Write([]string{failure.Email, code, failure.Err}); err != nil {
			return fmt.Errorf("write failure log record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
