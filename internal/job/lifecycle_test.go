package job

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"SCHEDULED", "INTAKE", true},
		{"SCHEDULED", "CANCELLED", true},
		{"SCHEDULED", "IN_PROGRESS", false},
		{"INTAKE", "IN_PROGRESS", true},
		{"INTAKE", "COMPLETED", false},
		{"IN_PROGRESS", "COMPLETED", true},
		{"IN_PROGRESS", "CANCELLED", true},
		{"COMPLETED", "CLOSED", true},
		{"COMPLETED", "CANCELLED", false},
		{"CLOSED", "COMPLETED", false},
		{"CANCELLED", "INTAKE", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanCancel(t *testing.T) {
	tests := []struct {
		status, role string
		want         bool
	}{
		{"SCHEDULED", "CASHIER", true},
		{"INTAKE", "DETAILER", true},
		{"IN_PROGRESS", "DETAILER", false},
		{"IN_PROGRESS", "CASHIER", false},
		{"IN_PROGRESS", "ADMIN", true},
		{"IN_PROGRESS", "OWNER", true},
		{"COMPLETED", "OWNER", false},
		{"CLOSED", "OWNER", false},
	}
	for _, tt := range tests {
		if got := CanCancel(tt.status, tt.role); got != tt.want {
			t.Errorf("CanCancel(%s, %s) = %v, want %v", tt.status, tt.role, got, tt.want)
		}
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	pending := Addon{ID: uuid.New(), Status: "PENDING", ExpiresAt: now.Add(time.Hour)}
	approved := Addon{ID: uuid.New(), Status: "APPROVED"}

	if got := EffectiveStatus("IN_PROGRESS", []Addon{pending}); got != "PENDING_APPROVAL" {
		t.Errorf("in-progress with pending add-on: got %s, want PENDING_APPROVAL", got)
	}
	if got := EffectiveStatus("IN_PROGRESS", []Addon{approved}); got != "IN_PROGRESS" {
		t.Errorf("in-progress with only responded add-ons: got %s, want IN_PROGRESS", got)
	}
	// The derived view only applies to in-progress work.
	if got := EffectiveStatus("INTAKE", []Addon{pending}); got != "INTAKE" {
		t.Errorf("intake with pending add-on: got %s, want INTAKE", got)
	}
}
