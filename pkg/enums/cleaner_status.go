package enums

import "fmt"

// CleanerStatus reflects a cleaner's availability. The busy flag is only
// mutated inside the same transaction as the job transition that causes it.
type CleanerStatus string

const (
	CleanerStatusOffDuty CleanerStatus = "off_duty"
	CleanerStatusOnDuty  CleanerStatus = "on_duty"
	CleanerStatusBusy    CleanerStatus = "busy"
)

func (s CleanerStatus) IsValid() bool {
	switch s {
	case CleanerStatusOffDuty, CleanerStatusOnDuty, CleanerStatusBusy:
		return true
	default:
		return false
	}
}

func ParseCleanerStatus(raw string) (CleanerStatus, error) {
	status := CleanerStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid cleaner status %q", raw)
	}
	return status, nil
}
