package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	callKeyPrefix       = "call:session:"
	transcriptKeyPrefix = "call:transcript:"
)

// RedisStore manages call sessions in Redis with a sliding TTL.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a session store backed by Redis. A zero ttl
// defaults to 24 hours.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		rdb:    rdb,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.session"),
	}
}

func callKey(callID string) string {
	return callKeyPrefix + callID
}

func transcriptKey(callID string) string {
	return transcriptKeyPrefix + callID
}

// Save persists or updates a session.
func (s *RedisStore) Save(ctx context.Context, sess *CallSession) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	if sess == nil || sess.CallID == "" {
		return fmt.Errorf("session: call_id required")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, callKey(sess.CallID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Get retrieves a session, or (nil, nil) when none exists.
func (s *RedisStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.rdb.Get(ctx, callKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var sess CallSession
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}

// Delete removes a session and its transcript.
func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.rdb.Del(ctx, callKey(callID), transcriptKey(callID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// AppendTranscript adds one utterance to the call transcript.
func (s *RedisStore) AppendTranscript(ctx context.Context, callID string, entry TranscriptEntry) error {
	ctx, span := s.tracer.Start(ctx, "session.append_transcript")
	defer span.End()

	data, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: transcript marshal: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, transcriptKey(callID), data)
	pipe.Expire(ctx, transcriptKey(callID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: transcript append: %w", err)
	}
	return nil
}

// Transcript returns the full transcript in insertion order. Entries
// that fail to decode are skipped.
func (s *RedisStore) Transcript(ctx context.Context, callID string) ([]TranscriptEntry, error) {
	ctx, span := s.tracer.Start(ctx, "session.transcript")
	defer span.End()

	data, err := s.rdb.LRange(ctx, transcriptKey(callID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: transcript get: %w", err)
	}
	entries := make([]TranscriptEntry, 0, len(data))
	for _, d := range data {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(d), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
