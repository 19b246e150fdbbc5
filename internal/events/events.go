// Package events publishes call lifecycle notifications to a queue so
// downstream consumers (reporting, follow-up SMS, billing) can react
// without coupling to the call path.
package events

import "time"

// Event types carried on the queue.
const (
	TypeCallStartedV1 = "call.started.v1"
	TypeCallEndedV1   = "call.ended.v1"
)

// CallEventV1 is the wire payload for call lifecycle events.
type CallEventV1 struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	CallID      string    `json:"call_id"`
	CallerPhone string    `json:"caller_phone,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Turns       int       `json:"turns,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
