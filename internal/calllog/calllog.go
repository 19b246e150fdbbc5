// Package calllog persists a durable record of finished calls to
// PostgreSQL. Sessions in Redis expire; the call log is what the
// practice reviews afterwards.
package calllog

import (
	"time"

	"github.com/google/uuid"
)

// CallRecord is one finished call.
type CallRecord struct {
	ID          uuid.UUID `json:"id"`
	CallID      string    `json:"call_id"`
	CallerPhone string    `json:"caller_phone,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Turns       int       `json:"turns"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	CreatedAt   time.Time `json:"created_at"`
}
