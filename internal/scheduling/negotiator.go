// Package scheduling reconciles caller intents against the calendar:
// exact-slot overlap checks, forward search for the nearest free
// in-hours slot, and delete/move semantics with per-call appointment
// tracking.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mlaurent/clinic-voice-agent/internal/calendar"
	"github.com/mlaurent/clinic-voice-agent/internal/intent"
	"github.com/mlaurent/clinic-voice-agent/internal/schedule"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

var schedulingTracer = otel.Tracer("clinic.internal.scheduling")

// How far ahead a name lookup scans when no date is given.
const nameSearchHorizon = 60 * 24 * time.Hour

// OutcomeKind classifies the result of a negotiation.
type OutcomeKind string

const (
	// OutcomeConfirmed means the requested slot was free and booked.
	OutcomeConfirmed OutcomeKind = "confirmed"
	// OutcomeProposed means the requested slot was unavailable and a
	// nearby alternative is offered. Nothing has been written; the
	// caller must confirm on a later turn.
	OutcomeProposed OutcomeKind = "proposed"
	// OutcomeNoAvailability means the forward search exhausted its
	// probe budget without finding a free in-hours slot.
	OutcomeNoAvailability OutcomeKind = "no_availability"
	// OutcomeDeleted means the identified appointment was removed.
	OutcomeDeleted OutcomeKind = "deleted"
	// OutcomeNotFound means no appointment matched the identification.
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeBusy and OutcomeFree answer availability checks.
	OutcomeBusy OutcomeKind = "busy"
	OutcomeFree OutcomeKind = "free"
)

// Outcome is the result of one negotiated calendar operation.
type Outcome struct {
	Kind OutcomeKind
	// Start is the slot the outcome refers to: the booked slot for
	// Confirmed, the offered alternative for Proposed, the checked or
	// removed slot otherwise. Zero for NotFound and NoAvailability.
	Start time.Time
	// EventID is set for Confirmed and Deleted.
	EventID string
}

// Negotiator arbitrates between caller intents and the calendar. The
// calendar provider stays the source of truth; the negotiator never
// caches events between calls.
type Negotiator struct {
	provider  calendar.Provider
	resolver  *schedule.Resolver
	hours     schedule.WeeklyHours
	duration  time.Duration
	maxProbes int
	logger    *logging.Logger
	now       func() time.Time
}

// NewNegotiator constructs a slot negotiator.
func NewNegotiator(provider calendar.Provider, resolver *schedule.Resolver, hours schedule.WeeklyHours, duration time.Duration, maxProbes int, logger *logging.Logger) *Negotiator {
	if provider == nil {
		panic("scheduling: calendar provider required")
	}
	if resolver == nil {
		panic("scheduling: resolver required")
	}
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	if maxProbes <= 0 {
		maxProbes = 16
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Negotiator{
		provider:  provider,
		resolver:  resolver,
		hours:     hours,
		duration:  duration,
		maxProbes: maxProbes,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (n *Negotiator) WithClock(now func() time.Time) *Negotiator {
	n.now = now
	return n
}

// Reserve books the requested slot when it is free and inside business
// hours; otherwise it searches forward for the nearest free in-hours
// slot and offers it without writing anything.
func (n *Negotiator) Reserve(ctx context.Context, act *intent.Action, sess *session.CallSession) (Outcome, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", act.Date),
		attribute.String("clinic.time", act.Time),
	)

	start, err := n.resolver.Resolve(act.Date, act.Time, n.now())
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	if n.hours.Check(start, n.duration) == nil {
		busy, err := n.overlaps(ctx, start)
		if err != nil {
			span.RecordError(err)
			return Outcome{}, err
		}
		if !busy {
			// A caller re-booking under their own name replaces the
			// earlier appointment instead of stacking a second one.
			if act.Name != "" {
				if err := n.removeByName(ctx, act.Name, sess); err != nil {
					span.RecordError(err)
					return Outcome{}, err
				}
			}
			id, err := n.provider.InsertEvent(ctx, n.newEvent(start, act, sess))
			if err != nil {
				span.RecordError(err)
				return Outcome{}, fmt.Errorf("scheduling: insert: %w", err)
			}
			if sess != nil {
				sess.RememberEvent(id)
			}
			n.logger.Info("appointment confirmed", "call_id", callID(sess), "event_id", id, "start", start)
			return Outcome{Kind: OutcomeConfirmed, Start: start, EventID: id}, nil
		}
	}

	next, ok, err := n.nextFree(ctx, start)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	if !ok {
		n.logger.Info("no availability", "call_id", callID(sess), "requested", start)
		return Outcome{Kind: OutcomeNoAvailability}, nil
	}
	n.logger.Info("alternative proposed", "call_id", callID(sess), "requested", start, "proposed", next)
	return Outcome{Kind: OutcomeProposed, Start: next}, nil
}

// Cancel removes the appointment identified either by explicit
// date/time or by the caller's name. Only the first match is deleted.
func (n *Negotiator) Cancel(ctx context.Context, act *intent.Action, sess *session.CallSession) (Outcome, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.cancel")
	defer span.End()

	ev, err := n.identify(ctx, act)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	if ev == nil {
		return Outcome{Kind: OutcomeNotFound}, nil
	}
	if err := n.provider.DeleteEvent(ctx, ev.ID); err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("scheduling: delete: %w", err)
	}
	if sess != nil && sess.RecallEvent() == ev.ID {
		sess.ForgetEvent()
	}
	n.logger.Info("appointment deleted", "call_id", callID(sess), "event_id", ev.ID, "start", ev.Start)
	return Outcome{Kind: OutcomeDeleted, Start: ev.Start, EventID: ev.ID}, nil
}

// Modify moves an appointment: delete at the old identification, then
// reserve at the new coordinates. The two calendar writes are not
// transactional; when the new slot turns out busy after the old
// appointment is gone, the Proposed outcome reflects that honestly.
func (n *Negotiator) Modify(ctx context.Context, act *intent.Action, sess *session.CallSession) (Outcome, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.modify")
	defer span.End()

	ev, err := n.identify(ctx, act)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	if ev == nil {
		return Outcome{Kind: OutcomeNotFound}, nil
	}
	if err := n.provider.DeleteEvent(ctx, ev.ID); err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("scheduling: delete old: %w", err)
	}
	if sess != nil && sess.RecallEvent() == ev.ID {
		sess.ForgetEvent()
	}

	create := &intent.Action{
		Kind:   intent.KindCreate,
		Date:   act.NewDate,
		Time:   act.NewTime,
		Name:   act.Name,
		Reason: act.Reason,
	}
	return n.Reserve(ctx, create, sess)
}

// Check answers whether the requested slot is free. Pure read, no
// mutation, and never consults the session's remembered appointment.
func (n *Negotiator) Check(ctx context.Context, act *intent.Action) (Outcome, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.check")
	defer span.End()

	start, err := n.resolver.Resolve(act.Date, act.Time, n.now())
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	busy, err := n.overlaps(ctx, start)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	if busy {
		return Outcome{Kind: OutcomeBusy, Start: start}, nil
	}
	return Outcome{Kind: OutcomeFree, Start: start}, nil
}

func (n *Negotiator) overlaps(ctx context.Context, start time.Time) (bool, error) {
	events, err := n.provider.ListEvents(ctx, start, start.Add(n.duration))
	if err != nil {
		return false, fmt.Errorf("scheduling: list events: %w", err)
	}
	return len(events) > 0, nil
}

// nextFree walks forward from the requested slot in fixed increments,
// skipping closed periods, until a slot passes both the business-hours
// and the overlap check or the probe budget runs out.
func (n *Negotiator) nextFree(ctx context.Context, from time.Time) (time.Time, bool, error) {
	candidate := from
	for probe := 0; probe < n.maxProbes; probe++ {
		if n.hours.Check(candidate, n.duration) != nil {
			next, ok := n.hours.NextOpening(candidate, n.duration, n.maxProbes)
			if !ok {
				return time.Time{}, false, nil
			}
			candidate = next
		}
		busy, err := n.overlaps(ctx, candidate)
		if err != nil {
			return time.Time{}, false, err
		}
		if !busy && !candidate.Equal(from) {
			return candidate, true, nil
		}
		candidate = candidate.Add(n.duration)
	}
	return time.Time{}, false, nil
}

// identify locates the appointment a delete/move refers to: by the
// overlap window when a date and time are given, by a scoped name
// search otherwise. Returns nil when nothing matches.
func (n *Negotiator) identify(ctx context.Context, act *intent.Action) (*calendar.Event, error) {
	if act.Date != "" && act.Time != "" {
		start, err := n.resolver.Resolve(act.Date, act.Time, n.now())
		if err != nil {
			return nil, err
		}
		events, err := n.provider.ListEvents(ctx, start, start.Add(n.duration))
		if err != nil {
			return nil, fmt.Errorf("scheduling: list events: %w", err)
		}
		if len(events) == 0 {
			return nil, nil
		}
		return &events[0], nil
	}

	if act.Name == "" {
		return nil, nil
	}
	from := n.now()
	events, err := n.provider.SearchEvents(ctx, from, from.Add(nameSearchHorizon), act.Name)
	if err != nil {
		return nil, fmt.Errorf("scheduling: search events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// removeByName deletes any upcoming appointment already booked under
// the given name so the caller never ends up double-booked.
func (n *Negotiator) removeByName(ctx context.Context, name string, sess *session.CallSession) error {
	from := n.now()
	events, err := n.provider.SearchEvents(ctx, from, from.Add(nameSearchHorizon), name)
	if err != nil {
		return fmt.Errorf("scheduling: search events: %w", err)
	}
	for _, ev := range events {
		if err := n.provider.DeleteEvent(ctx, ev.ID); err != nil {
			return fmt.Errorf("scheduling: replace previous booking: %w", err)
		}
		if sess != nil && sess.RecallEvent() == ev.ID {
			sess.ForgetEvent()
		}
		n.logger.Info("previous booking replaced", "call_id", callID(sess), "event_id", ev.ID)
	}
	return nil
}

func (n *Negotiator) newEvent(start time.Time, act *intent.Action, sess *session.CallSession) calendar.Event {
	name := act.Name
	reason := act.Reason
	if sess != nil {
		if name == "" {
			name = sess.PatientName
		}
		if reason == "" {
			reason = sess.PatientReason
		}
	}
	summary := "Consultation"
	if name != "" {
		summary = "Consultation - " + name
	}
	var description string
	if reason != "" {
		description = "Motif: " + reason
	}
	return calendar.Event{
		Summary:     summary,
		Description: description,
		Start:       start,
		End:         start.Add(n.duration),
	}
}

func callID(sess *session.CallSession) string {
	if sess == nil {
		return ""
	}
	return sess.CallID
}
