// Package calendar abstracts the external calendar provider. The provider is
// the single source of truth for appointments: the engine never caches
// availability and re-reads before every decision.
package calendar

import (
	"context"
	"errors"
	"time"
)

// Event is an appointment on the managed calendar.
type Event struct {
	// ID is the provider-assigned opaque event id.
	ID string
	// Summary is the display title, the patient name when known.
	Summary string
	// Description carries the consultation reason, when collected.
	Description string
	// Start and End bound the slot as a half-open interval [Start, End).
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the event intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}

// ErrNotFound is returned by mutations targeting an event that no longer
// exists.
var ErrNotFound = errors.New("calendar: event not found")

// Provider is the narrow calendar collaborator interface. All instants are
// timezone-qualified in the practice's operating timezone.
type Provider interface {
	// ListEvents returns events intersecting [timeMin, timeMax).
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
	// SearchEvents returns events intersecting [timeMin, timeMax) whose
	// summary or description matches the free-text query.
	SearchEvents(ctx context.Context, timeMin, timeMax time.Time, query string) ([]Event, error)
	// InsertEvent creates the event and returns the provider-assigned id.
	InsertEvent(ctx context.Context, ev Event) (string, error)
	// UpdateEvent rewrites the event identified by id.
	UpdateEvent(ctx context.Context, id string, ev Event) error
	// DeleteEvent removes the event identified by id.
	DeleteEvent(ctx context.Context, id string) error
}
