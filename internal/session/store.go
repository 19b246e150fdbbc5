package session

import "context"

// Store persists call sessions and their transcripts. Implementations
// are Redis for production and an in-memory map for tests and the demo
// mode.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *CallSession) error
	// Get retrieves a session, or (nil, nil) when none exists.
	Get(ctx context.Context, callID string) (*CallSession, error)
	// Delete removes a session and its transcript.
	Delete(ctx context.Context, callID string) error
	// AppendTranscript adds one utterance to the call transcript.
	AppendTranscript(ctx context.Context, callID string, entry TranscriptEntry) error
	// Transcript returns the full transcript in insertion order.
	Transcript(ctx context.Context, callID string) ([]TranscriptEntry, error)
}
