// Package status maps upstream action status vocabulary onto a closed enum.
package status

import "strings"

// Status is a normalized action/plan-step status.
type Status string

// The closed status vocabulary used throughout the action log and plan.
const (
	Pending Status = "pending"
	Running Status = "running"
	Success Status = "success"
	Failed  Status = "failed"
	Blocked Status = "blocked"
)

// Normalize maps an arbitrary upstream status string onto the closed enum.
// Matching is case-insensitive. Unknown or empty input maps to Pending so
// upstream vocabulary drift never breaks the action log.
func Normalize(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "in_progress":
		return Running
	case "success", "completed", "done":
		return Success
	case "failed", "error":
		return Failed
	case "blocked":
		return Blocked
	default:
		return Pending
	}
}

// IsTerminal reports whether a status represents a finished action.
func (s Status) IsTerminal() bool {
	return s == Success || s == Failed
}
