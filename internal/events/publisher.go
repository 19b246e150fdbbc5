package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

// Publisher emits call lifecycle events. A nil Publisher is safe and
// publishes nothing, so the call path can run without a queue.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher creates an event publisher on the given queue.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("events: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger, now: time.Now}
}

// CallStarted publishes a call.started event.
func (p *Publisher) CallStarted(ctx context.Context, sess *session.CallSession) error {
	if p == nil || sess == nil {
		return nil
	}
	return p.publish(ctx, CallEventV1{
		Type:        TypeCallStartedV1,
		CallID:      sess.CallID,
		CallerPhone: logging.MaskPhone(sess.CallerPhone),
		StartedAt:   sess.StartedAt,
	})
}

// CallEnded publishes a call.ended event with the final outcome.
func (p *Publisher) CallEnded(ctx context.Context, sess *session.CallSession) error {
	if p == nil || sess == nil {
		return nil
	}
	return p.publish(ctx, CallEventV1{
		Type:        TypeCallEndedV1,
		CallID:      sess.CallID,
		CallerPhone: logging.MaskPhone(sess.CallerPhone),
		Outcome:     sess.Outcome,
		Turns:       sess.TurnCount,
		StartedAt:   sess.StartedAt,
		EndedAt:     sess.LastActivityAt,
	})
}

func (p *Publisher) publish(ctx context.Context, event CallEventV1) error {
	event.ID = uuid.NewString()
	event.OccurredAt = p.now().UTC()
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Type, err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	p.logger.Info("event published", "type", event.Type, "call_id", event.CallID)
	return nil
}
