package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider implements Provider on top of the Google Calendar API, the
// calendar backing the practice's shared agenda.
type GoogleProvider struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleProvider builds a provider for the given calendar. credentialsJSON
// is a service-account key; when empty, application default credentials are
// used.
func NewGoogleProvider(ctx context.Context, calendarID, credentialsJSON string, loc *time.Location) (*GoogleProvider, error) {
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarEventsScope)}
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleProvider{svc: svc, calendarID: calendarID, loc: loc}, nil
}

// ListEvents returns events intersecting [timeMin, timeMax).
func (p *GoogleProvider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	return p.list(ctx, timeMin, timeMax, "")
}

// SearchEvents returns events in the window matching the free-text query.
func (p *GoogleProvider) SearchEvents(ctx context.Context, timeMin, timeMax time.Time, query string) ([]Event, error) {
	return p.list(ctx, timeMin, timeMax, query)
}

func (p *GoogleProvider) list(ctx context.Context, timeMin, timeMax time.Time, query string) ([]Event, error) {
	call := p.svc.Events.List(p.calendarID).
		Context(ctx).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if query != "" {
		call = call.Q(query)
	}

	var events []Event
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("calendar: list events: %w", err)
		}
		for _, item := range resp.Items {
			ev, ok := p.fromGoogle(item)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
		if resp.NextPageToken == "" {
			return events, nil
		}
		pageToken = resp.NextPageToken
	}
}

// InsertEvent creates the event and returns its id.
func (p *GoogleProvider) InsertEvent(ctx context.Context, ev Event) (string, error) {
	created, err := p.svc.Events.Insert(p.calendarID, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent rewrites the event identified by id.
func (p *GoogleProvider) UpdateEvent(ctx context.Context, id string, ev Event) error {
	_, err := p.svc.Events.Update(p.calendarID, id, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("calendar: update event %s: %w", id, err)
	}
	return nil
}

// DeleteEvent removes the event identified by id.
func (p *GoogleProvider) DeleteEvent(ctx context.Context, id string) error {
	if err := p.svc.Events.Delete(p.calendarID, id).Context(ctx).Do(); err != nil {
		if isGoogleNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("calendar: delete event %s: %w", id, err)
	}
	return nil
}

func (p *GoogleProvider) toGoogle(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
	}
}

// fromGoogle converts an API event, skipping all-day entries that carry no
// concrete start instant.
func (p *GoogleProvider) fromGoogle(item *gcal.Event) (Event, bool) {
	if item == nil || item.Start == nil || item.End == nil ||
		item.Start.DateTime == "" || item.End.DateTime == "" {
		return Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, false
	}
	return Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Start:       start.In(p.loc),
		End:         end.In(p.loc),
	}, true
}

func isGoogleNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
