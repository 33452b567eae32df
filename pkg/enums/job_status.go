package enums

import "fmt"

// JobStatus tracks a job through its lifecycle. Terminal statuses are never
// left once entered, and a cleaner reference is never removed once attached.
type JobStatus string

const (
	JobStatusPendingPayment     JobStatus = "pending_payment"
	JobStatusPaid               JobStatus = "paid"
	JobStatusAssigned           JobStatus = "assigned"
	JobStatusInProgress         JobStatus = "in_progress"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusCancelled          JobStatus = "cancelled"
	JobStatusRefunded           JobStatus = "refunded"
	JobStatusRefundedUnattended JobStatus = "refunded_unattended"
)

var jobStatuses = map[JobStatus]struct{}{
	JobStatusPendingPayment:     {},
	JobStatusPaid:               {},
	JobStatusAssigned:           {},
	JobStatusInProgress:         {},
	JobStatusCompleted:          {},
	JobStatusCancelled:          {},
	JobStatusRefunded:           {},
	JobStatusRefundedUnattended: {},
}

func (s JobStatus) IsValid() bool {
	_, ok := jobStatuses[s]
	return ok
}

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusRefunded, JobStatusRefundedUnattended:
		return true
	default:
		return false
	}
}

// HasCleaner reports whether a job in this status must carry a cleaner id.
func (s JobStatus) HasCleaner() bool {
	switch s {
	case JobStatusAssigned, JobStatusInProgress, JobStatusCompleted:
		return true
	default:
		return false
	}
}

func ParseJobStatus(raw string) (JobStatus, error) {
	status := JobStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid job status %q", raw)
	}
	return status, nil
}
