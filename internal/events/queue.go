package events

import "context"

// Queue abstracts the transport carrying call events. Implementations
// are SQS in production and an in-memory channel for tests and the
// demo mode.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one queued payload.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}
