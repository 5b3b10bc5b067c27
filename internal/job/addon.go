package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/enum"
)

var (
	ErrAddonNotResendable = errors.New("add-on can only be resent after it expired or was declined")
	ErrAddonDiscount      = errors.New("add-on discount cannot exceed the item price")
	ErrDuplicateService   = errors.New("service is already on the job")
)

// Addon is one staff-proposed extra requiring customer authorization.
// Exactly one of ServiceID, ProductID or CustomDescription identifies
// what is being sold.
type Addon struct {
	ID     uuid.UUID
	Status string // enum.AddonStatus*

	ServiceID         *uuid.UUID
	ProductID         *uuid.UUID
	CustomDescription string

	Price    decimal.Decimal
	Discount decimal.Decimal

	PhotoID            *uuid.UUID // the flagged photo that motivated the recommendation
	PickupDelayMinutes int32
	Message            string

	SentAt      time.Time
	RespondedAt *time.Time
	ExpiresAt   time.Time
}

// Terminal reports whether the add-on can no longer change state.
func (a Addon) Terminal() bool {
	return a.Status != enum.AddonStatusPending
}

// EvaluateExpiry lazily flips a pending add-on past its window to
// EXPIRED. Idempotent: evaluating an already-expired (or otherwise
// terminal) add-on changes nothing, and evaluating twice in a row gives
// the same result both times.
func EvaluateExpiry(a Addon, now time.Time) (Addon, bool) {
	if a.Status != enum.AddonStatusPending {
		return a, false
	}
	if now.Before(a.ExpiresAt) {
		return a, false
	}
	a.Status = enum.AddonStatusExpired
	return a, true
}

// CanResend reports whether a resend may open a fresh pending window.
// Approved add-ons are done; pending ones still have a live window.
func CanResend(status string) bool {
	return status == enum.AddonStatusExpired || status == enum.AddonStatusDeclined
}

// ValidateAddonDiscount rejects discounts that exceed the item price.
func ValidateAddonDiscount(price, discount decimal.Decimal) error {
	if discount.GreaterThan(price) {
		return ErrAddonDiscount
	}
	return nil
}

// ServiceOnJob reports whether the service is already sold on the job,
// either as an original job service or as an already-approved add-on.
// Recommending such a service again must be rejected (the per-unit
// quantity-increment case is handled by the caller before this check).
func ServiceOnJob(jobServiceIDs []uuid.UUID, addons []Addon, serviceID uuid.UUID) bool {
	for _, id := range jobServiceIDs {
		if id == serviceID {
			return true
		}
	}
	for _, a := range addons {
		if a.Status == enum.AddonStatusApproved && a.ServiceID != nil && *a.ServiceID == serviceID {
			return true
		}
	}
	return false
}

// HasPendingAddon reports whether any add-on is still awaiting response.
// Drives the derived PENDING_APPROVAL view of an in-progress job.
func HasPendingAddon(addons []Addon) bool {
	for _, a := range addons {
		if a.Status == enum.AddonStatusPending {
			return true
		}
	}
	return false
}
