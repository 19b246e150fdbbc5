package calendar

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory Provider for tests and the local demo mode.
// Safe for concurrent use.
type MemoryProvider struct {
	mu     sync.Mutex
	events map[string]Event
}

// NewMemoryProvider creates an empty in-memory calendar.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{events: map[string]Event{}}
}

// ListEvents returns events intersecting [timeMin, timeMax), ordered by start.
func (p *MemoryProvider) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	return p.filter(timeMin, timeMax, ""), nil
}

// SearchEvents returns windowed events whose summary or description contains
// the query, case-insensitively.
func (p *MemoryProvider) SearchEvents(_ context.Context, timeMin, timeMax time.Time, query string) ([]Event, error) {
	return p.filter(timeMin, timeMax, query), nil
}

// InsertEvent stores the event under a fresh id.
func (p *MemoryProvider) InsertEvent(_ context.Context, ev Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.ID = uuid.NewString()
	p.events[ev.ID] = ev
	return ev.ID, nil
}

// UpdateEvent rewrites an existing event.
func (p *MemoryProvider) UpdateEvent(_ context.Context, id string, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[id]; !ok {
		return ErrNotFound
	}
	ev.ID = id
	p.events[id] = ev
	return nil
}

// DeleteEvent removes an event.
func (p *MemoryProvider) DeleteEvent(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[id]; !ok {
		return ErrNotFound
	}
	delete(p.events, id)
	return nil
}

// All returns every stored event ordered by start time.
func (p *MemoryProvider) All() []Event {
	return p.filter(time.Time{}, time.Unix(1<<62, 0), "")
}

func (p *MemoryProvider) filter(timeMin, timeMax time.Time, query string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	query = strings.ToLower(query)
	var out []Event
	for _, ev := range p.events {
		if !ev.Overlaps(timeMin, timeMax) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(ev.Summary), query) &&
			!strings.Contains(strings.ToLower(ev.Description), query) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
