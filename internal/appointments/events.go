package appointments

import (
	"context"
	"time"
)

// EventKind names a committed appointment change.
type EventKind string

const (
	EventCreated   EventKind = "appointment.created"
	EventUpdated   EventKind = "appointment.updated"
	EventCancelled EventKind = "appointment.cancelled"
	EventNoShow    EventKind = "appointment.no_show"
	EventReminded  EventKind = "appointment.reminded"
)

// Event describes a change after it has been committed.
type Event struct {
	Kind        EventKind   `json:"type"`
	TenantID    string      `json:"tenant_id"`
	Appointment Appointment `json:"appointment"`
	At          time.Time   `json:"at"`
}

// Listener observes committed changes. Implementations must not block;
// slow work belongs on a goroutine.
type Listener interface {
	AppointmentChanged(ctx context.Context, evt Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt Event)

func (f ListenerFunc) AppointmentChanged(ctx context.Context, evt Event) { f(ctx, evt) }
