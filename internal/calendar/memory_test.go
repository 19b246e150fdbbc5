package calendar

import (
	"context"
	"errors"
	"testing"
	"time"
)

func day(t *testing.T, hour int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2026, time.March, 10, hour, 0, 0, 0, loc)
}

func TestMemoryProviderInsertAndList(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	id, err := p.InsertEvent(ctx, Event{
		Summary: "Consultation - Dupont",
		Start:   day(t, 9),
		End:     day(t, 9).Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	events, err := p.ListEvents(ctx, day(t, 8), day(t, 18))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != id {
		t.Fatalf("expected the inserted event back, got %+v", events)
	}
}

func TestMemoryProviderListWindowing(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	for _, hour := range []int{9, 11, 15} {
		if _, err := p.InsertEvent(ctx, Event{
			Summary: "Consultation",
			Start:   day(t, hour),
			End:     day(t, hour).Add(30 * time.Minute),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	events, err := p.ListEvents(ctx, day(t, 10), day(t, 12))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the 11:00 event, got %d", len(events))
	}
	if got := events[0].Start.Hour(); got != 11 {
		t.Fatalf("expected 11:00 start, got %d:00", got)
	}
}

func TestMemoryProviderListOrdered(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	for _, hour := range []int{15, 9, 11} {
		if _, err := p.InsertEvent(ctx, Event{
			Summary: "Consultation",
			Start:   day(t, hour),
			End:     day(t, hour).Add(30 * time.Minute),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	events, err := p.ListEvents(ctx, day(t, 8), day(t, 18))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Start.Before(events[i-1].Start) {
			t.Fatalf("events out of order: %v before %v", events[i].Start, events[i-1].Start)
		}
	}
}

func TestMemoryProviderSearch(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	if _, err := p.InsertEvent(ctx, Event{
		Summary: "Consultation - Dupont",
		Start:   day(t, 9),
		End:     day(t, 9).Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.InsertEvent(ctx, Event{
		Summary:     "Consultation",
		Description: "Motif: contrôle - Martin",
		Start:       day(t, 10),
		End:         day(t, 10).Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	events, err := p.SearchEvents(ctx, day(t, 8), day(t, 18), "dupont")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(events) != 1 || events[0].Summary != "Consultation - Dupont" {
		t.Fatalf("expected the Dupont event, got %+v", events)
	}

	events, err = p.SearchEvents(ctx, day(t, 8), day(t, 18), "Martin")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected a description match, got %+v", events)
	}
}

func TestMemoryProviderUpdateAndDelete(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	id, err := p.InsertEvent(ctx, Event{
		Summary: "Consultation",
		Start:   day(t, 9),
		End:     day(t, 9).Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := p.UpdateEvent(ctx, id, Event{
		Summary: "Consultation",
		Start:   day(t, 14),
		End:     day(t, 14).Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	events, _ := p.ListEvents(ctx, day(t, 13), day(t, 15))
	if len(events) != 1 || events[0].ID != id {
		t.Fatalf("expected the moved event, got %+v", events)
	}

	if err := p.DeleteEvent(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := p.DeleteEvent(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := p.UpdateEvent(ctx, "missing", Event{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing id, got %v", err)
	}
}

func TestEventOverlaps(t *testing.T) {
	ev := Event{Start: day(t, 9), End: day(t, 10)}

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", day(t, 9).Add(15 * time.Minute), day(t, 9).Add(45 * time.Minute), true},
		{"covers", day(t, 8), day(t, 11), true},
		{"touching before", day(t, 8), day(t, 9), false},
		{"touching after", day(t, 10), day(t, 11), false},
		{"disjoint", day(t, 12), day(t, 13), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ev.Overlaps(tc.start, tc.end); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}
