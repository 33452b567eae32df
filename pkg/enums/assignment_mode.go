package enums

import "fmt"

// AssignmentMode selects how a job reaches a cleaner: pool jobs are open to
// any eligible on-duty cleaner, direct jobs target one pre-selected cleaner.
type AssignmentMode string

const (
	AssignmentModePool   AssignmentMode = "pool"
	AssignmentModeDirect AssignmentMode = "direct"
)

func (m AssignmentMode) IsValid() bool {
	return m == AssignmentModePool || m == AssignmentModeDirect
}

func ParseAssignmentMode(raw string) (AssignmentMode, error) {
	mode := AssignmentMode(raw)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid assignment mode %q", raw)
	}
	return mode, nil
}
