package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mlaurent/clinic-voice-agent/internal/session"
)

func TestPublisherCallEnded(t *testing.T) {
	queue := NewMemoryQueue(8)
	pub := NewPublisher(queue, nil)
	ctx := context.Background()

	sess := &session.CallSession{
		CallID:         "call-1",
		CallerPhone:    "+33612345678",
		Outcome:        "booked",
		TurnCount:      4,
		StartedAt:      time.Now().UTC().Add(-2 * time.Minute),
		LastActivityAt: time.Now().UTC(),
	}
	if err := pub.CallEnded(ctx, sess); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := queue.Receive(ctx, 1, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}

	var event CallEventV1
	if err := json.Unmarshal([]byte(msgs[0].Body), &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != TypeCallEndedV1 || event.CallID != "call-1" || event.Outcome != "booked" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.ID == "" || event.OccurredAt.IsZero() {
		t.Fatal("expected id and occurred_at set")
	}
	if event.CallerPhone == "+33612345678" {
		t.Fatal("caller phone must be masked on the wire")
	}
}

func TestPublisherCallStarted(t *testing.T) {
	queue := NewMemoryQueue(8)
	pub := NewPublisher(queue, nil)

	sess := &session.CallSession{CallID: "call-2", StartedAt: time.Now().UTC()}
	if err := pub.CallStarted(context.Background(), sess); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one message, got %d err %v", len(msgs), err)
	}
}

func TestPublisherNilSafe(t *testing.T) {
	var pub *Publisher
	if err := pub.CallEnded(context.Background(), &session.CallSession{CallID: "x"}); err != nil {
		t.Fatalf("nil publisher must be a no-op, got %v", err)
	}
}

func TestMemoryQueueTimeout(t *testing.T) {
	queue := NewMemoryQueue(1)
	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msgs != nil {
		t.Fatalf("expected a timeout with no messages, got %+v", msgs)
	}
}
