package appointments

import (
	"strings"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Validation("invalid appointment status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected. Only
// cancellation may still be applied to a terminal appointment.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Occupies reports whether an appointment in this state holds its slot.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

// CanTransition reports whether an appointment may move from one status to
// another. Staying put is always allowed; anything can be cancelled;
// completion and no-show are reachable only from scheduled. Nothing goes
// back to scheduled.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusCompleted, StatusNoShow:
		return from == StatusScheduled
	default:
		return false
	}
}
