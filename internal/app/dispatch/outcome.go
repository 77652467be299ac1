package dispatch

// Status is the terminal state of one recipient within a run.
type Status string

const (
	StatusSent             Status = "sent"
	StatusSkipped          Status = "skipped"
	StatusTransientFailure Status = "transient_failure"
	StatusPermanentFailure Status = "permanent_failure"
	StatusTemplateFailure  Status = "template_failure"
	StatusBatchFailure     Status = "batch_failure"
)

// Outcome records the terminal result for a single recipient.
// Code carries the SMTP status code where one applies, 0 otherwise.
type Outcome struct {
	Email  string
	Status Status
	Code   int
	Err    string
}

// Failed reports whether the outcome counts towards the failed total.
// Skipped recipients were never attempted and count as neither sent
// nor failed.
func (o Outcome) Failed() bool {
	return o.Status != StatusSent && o.Status != StatusSkipped
}
