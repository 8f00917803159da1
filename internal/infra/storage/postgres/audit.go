package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/apiguard/internal/session"
)

// TeardownRecord is one persisted teardown run.
type TeardownRecord struct {
	RunID       string         `db:"run_id"       json:"run_id"`
	Reason      string         `db:"reason"       json:"reason"`
	Steps       []byte         `db:"steps"        json:"-"`
	FailedSteps pq.StringArray `db:"failed_steps" json:"failed_steps"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
}

// StepList decodes the stored step results.
func (r TeardownRecord) StepList() ([]session.StepResult, error) {
	var steps []session.StepResult
	if len(r.Steps) == 0 {
		return steps, nil
	}
	if err := json.Unmarshal(r.Steps, &steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	return steps, nil
}

// AuditRepo stores teardown reports.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new PostgreSQL teardown audit repository.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func newTeardownRecord(report session.Report, now time.Time) (TeardownRecord, error) {
	steps, err := json.Marshal(report.Steps)
	if err != nil {
		return TeardownRecord{}, fmt.Errorf("failed to encode steps: %w", err)
	}
	failed := pq.StringArray{}
	for _, s := range report.Failed() {
		failed = append(failed, s.Step)
	}
	return TeardownRecord{
		RunID:       report.RunID,
		Reason:      string(report.Reason),
		Steps:       steps,
		FailedSteps: failed,
		CreatedAt:   now.UTC(),
	}, nil
}

// RecordTeardown saves report.
func (r *AuditRepo) RecordTeardown(ctx context.Context, report session.Report) error {
	rec, err := newTeardownRecord(report, time.Now())
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO session_teardowns (run_id, reason, steps, failed_steps, created_at)
		VALUES (:run_id, :reason, :steps, :failed_steps, :created_at)
		ON CONFLICT (run_id) DO NOTHING`, rec)
	if err != nil {
		return fmt.Errorf("failed to record teardown: %w", err)
	}
	return nil
}

// Recent returns the latest teardown runs, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]TeardownRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []TeardownRecord
	err := r.db.SelectContext(ctx, &out, `
		SELECT run_id, reason, steps, failed_steps, created_at
		FROM session_teardowns
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list teardowns: %w", err)
	}
	return out, nil
}
