package job

import (
	"github.com/glosspos/api/internal/enum"
)

// transitions is the legal status graph. PENDING_APPROVAL never appears:
// it is derived from pending add-ons, not stored.
var transitions = map[string][]string{
	enum.JobStatusScheduled:  {enum.JobStatusIntake, enum.JobStatusCancelled},
	enum.JobStatusIntake:     {enum.JobStatusInProgress, enum.JobStatusCancelled},
	enum.JobStatusInProgress: {enum.JobStatusCompleted, enum.JobStatusCancelled},
	enum.JobStatusCompleted:  {enum.JobStatusClosed},
	enum.JobStatusClosed:     {},
	enum.JobStatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal edge. Guards
// (intake completion, coverage) are checked by the controller on top of
// this.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel applies the cancellation permission policy: anyone with
// cancel permission before work starts, elevated roles once work is in
// progress, nobody after completion.
func CanCancel(status, role string) bool {
	switch status {
	case enum.JobStatusScheduled, enum.JobStatusIntake:
		return true
	case enum.JobStatusInProgress:
		return role == enum.UserRoleOwner || role == enum.UserRoleAdmin
	default:
		return false
	}
}

// EffectiveStatus derives the externally visible status: an in-progress
// job with a pending add-on reads as PENDING_APPROVAL.
func EffectiveStatus(status string, addons []Addon) string {
	if status == enum.JobStatusInProgress && HasPendingAddon(addons) {
		return enum.JobStatusPendingApproval
	}
	return status
}
