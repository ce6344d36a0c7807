package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// StampJobRepository is the outbox of on-chain mint and add_stamp operations
type StampJobRepository struct {
	db *PostgresDB
}

// NewStampJobRepository creates a new stamp job repository
func NewStampJobRepository(db *PostgresDB) *StampJobRepository {
	return &StampJobRepository{db: db}
}

func insertStampJob(ctx context.Context, tx pgx.Tx, action types.StampJobAction, user string, stampID *string, at time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO stamp_jobs (id, action, user_address, stamp_id, status, created_at, updated_at, next_attempt_at)
		 VALUES ($1, $2, $3, $4, 'queued', $5, $5, $5)`,
		uuid.New().String(), action, user, stampID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue stamp job: %w", err)
	}
	return nil
}

// EnqueueJob adds a job outside of any other transaction
func (r *StampJobRepository) EnqueueJob(ctx context.Context, action types.StampJobAction, userAddress string, stampID *string) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return insertStampJob(ctx, tx, action, types.NormalizeAddress(userAddress), stampID, time.Now().UTC())
	})
}

// ClaimJobs marks up to limit ready jobs in_progress and returns them. Rows
// locked by another worker are skipped.
func (r *StampJobRepository) ClaimJobs(ctx context.Context, limit int) ([]*models.StampJob, error) {
	rows, err := r.db.Pool().Query(ctx, `
		UPDATE stamp_jobs SET status = 'in_progress', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM stamp_jobs
			WHERE status IN ('queued', 'submitted') AND next_attempt_at <= NOW()
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, action, user_address, stamp_id, status, attempts, tx_hash, last_error, created_at, updated_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim stamp jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.StampJob, 0, limit)
	for rows.Next() {
		var j models.StampJob
		if err := rows.Scan(&j.ID, &j.Action, &j.UserAddress, &j.StampID, &j.Status, &j.Attempts,
			&j.TxHash, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stamp job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// CompleteJob records the confirmed transaction and copies its hash onto the stamp
func (r *StampJobRepository) CompleteJob(ctx context.Context, job *models.StampJob, txHash string) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE stamp_jobs SET status = 'completed', tx_hash = $2, last_error = NULL, updated_at = NOW() WHERE id = $1`,
			job.ID, txHash,
		); err != nil {
			return fmt.Errorf("failed to complete stamp job: %w", err)
		}
		if job.StampID != nil {
			if _, err := tx.Exec(ctx, `UPDATE stamps SET tx_hash = $2 WHERE id = $1`, *job.StampID, txHash); err != nil {
				return fmt.Errorf("failed to record stamp tx: %w", err)
			}
		}
		return nil
	})
}

// MarkSubmitted stores the hash of a broadcast transaction so a retry waits for
// that transaction instead of sending a second one.
func (r *StampJobRepository) MarkSubmitted(ctx context.Context, job *models.StampJob, txHash string) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE stamp_jobs SET status = 'submitted', tx_hash = $2, updated_at = NOW() WHERE id = $1`,
		job.ID, txHash,
	)
	if err != nil {
		return fmt.Errorf("failed to mark stamp job submitted: %w", err)
	}
	job.TxHash = &txHash
	job.Status = types.JobSubmitted
	return nil
}

// FailJob records an attempt failure. The job is requeued after retryAfter, or
// marked failed once it has used maxAttempts.
func (r *StampJobRepository) FailJob(ctx context.Context, job *models.StampJob, cause error, retryAfter time.Duration, maxAttempts int) error {
	status := types.JobQueued
	if job.TxHash != nil {
		status = types.JobSubmitted
	}
	if job.Attempts >= maxAttempts {
		status = types.JobFailed
	}
	msg := cause.Error()

	_, err := r.db.Pool().Exec(ctx,
		`UPDATE stamp_jobs SET status = $2, last_error = $3, next_attempt_at = $4, updated_at = NOW() WHERE id = $1`,
		job.ID, status, msg, time.Now().UTC().Add(retryAfter),
	)
	if err != nil {
		return fmt.Errorf("failed to record stamp job failure: %w", err)
	}
	return nil
}
