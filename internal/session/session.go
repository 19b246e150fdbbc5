// Package session holds per-call conversational state: who is calling,
// what the call has said so far, and which appointment the call most
// recently touched. The calendar provider stays the source of truth for
// appointments; sessions only carry conversational shortcuts.
package session

import "time"

// Transcript speaker roles.
const (
	RoleSystem    = "system"
	RoleCaller    = "caller"
	RoleAssistant = "assistant"
)

// Call lifecycle statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// CallSession tracks the state of one phone call.
type CallSession struct {
	// CallID is the telephony provider's call identifier.
	CallID string `json:"call_id"`
	// CallerPhone is the caller's number in E.164, when known.
	CallerPhone string `json:"caller_phone,omitempty"`
	// PatientName is the caller's name once they have stated it.
	PatientName string `json:"patient_name,omitempty"`
	// PatientReason is the stated reason for the visit.
	PatientReason string `json:"patient_reason,omitempty"`
	// LastManagedEventID identifies the appointment this call most
	// recently created or moved. Cleared when that appointment is
	// deleted. Never consulted for availability checks.
	LastManagedEventID string `json:"last_managed_event_id,omitempty"`
	// Status is active or ended.
	Status string `json:"status"`
	// TurnCount is the number of caller/assistant exchanges so far.
	TurnCount int `json:"turn_count"`
	// SilentTurns counts consecutive empty or unintelligible caller
	// utterances; reset on any understood turn.
	SilentTurns int `json:"silent_turns"`
	// StartedAt is when the call was answered.
	StartedAt time.Time `json:"started_at"`
	// LastActivityAt tracks the most recent turn.
	LastActivityAt time.Time `json:"last_activity_at"`
	// Outcome records how the call ended: booked, cancelled, moved,
	// abandoned, or empty while active.
	Outcome string `json:"outcome,omitempty"`
}

// TranscriptEntry is a single utterance in a call transcript.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RememberEvent binds the session to the appointment it just created or
// moved.
func (s *CallSession) RememberEvent(eventID string) {
	s.LastManagedEventID = eventID
}

// ForgetEvent clears the remembered appointment.
func (s *CallSession) ForgetEvent() {
	s.LastManagedEventID = ""
}

// RecallEvent returns the remembered appointment id, or "" when none.
func (s *CallSession) RecallEvent() string {
	return s.LastManagedEventID
}
