package calllog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository stores call records. Satisfied by pgxpool.Pool in
// production and pgxmock in tests.
type Repository struct {
	db db
}

// NewRepository creates a call log repository.
func NewRepository(db db) *Repository {
	if db == nil {
		panic("calllog: db required")
	}
	return &Repository{db: db}
}

// RecordEndedCall writes the durable record for a finished session.
// The caller phone is masked before it is stored.
func (r *Repository) RecordEndedCall(ctx context.Context, sess *session.CallSession) (*CallRecord, error) {
	if sess == nil {
		return nil, fmt.Errorf("calllog: session required")
	}
	rec := &CallRecord{
		ID:          uuid.New(),
		CallID:      sess.CallID,
		CallerPhone: logging.MaskPhone(sess.CallerPhone),
		PatientName: sess.PatientName,
		Outcome:     sess.Outcome,
		Turns:       sess.TurnCount,
		StartedAt:   sess.StartedAt.UTC(),
		EndedAt:     sess.LastActivityAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO call_records (
			id, call_id, caller_phone, patient_name, outcome, turns,
			started_at, ended_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.CallID, rec.CallerPhone, rec.PatientName, rec.Outcome, rec.Turns, rec.StartedAt, rec.EndedAt, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("calllog: insert record: %w", err)
	}
	return rec, nil
}

// ListRecent returns the most recent call records, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, call_id, caller_phone, patient_name, outcome, turns,
		       started_at, ended_at, created_at
		FROM call_records
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("calllog: list records: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.CallerPhone, &rec.PatientName, &rec.Outcome, &rec.Turns, &rec.StartedAt, &rec.EndedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("calllog: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calllog: iterate records: %w", err)
	}
	return records, nil
}
