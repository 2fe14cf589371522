package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// JobRepository implements port.JobRepository on SQLite
type JobRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *sql.DB, logger *zap.Logger) port.JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

// Create enqueues a job in QUEUED state
func (r *JobRepository) Create(ctx context.Context, job *entity.IngestJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.State == "" {
		job.State = entity.JobStateQueued
	}

	query := `
		INSERT INTO ingest_jobs (id, space_id, receipt_id, modality, payload_path, state, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		job.ID, job.SpaceID, job.ReceiptID, job.Modality, job.PayloadPath, job.State, job.Attempts)
	if err != nil {
		r.logger.Error("Failed to create ingest job",
			zap.String("receipt_id", job.ReceiptID),
			zap.Error(err))
		return fmt.Errorf("failed to create ingest job: %w", err)
	}
	return nil
}

// GetByID retrieves a job. Returns nil, nil when not found.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.IngestJob, error) {
	query := `
		SELECT id, space_id, receipt_id, modality, payload_path, state, attempts,
			last_error, created_at, started_at, finished_at
		FROM ingest_jobs
		WHERE id = ?
	`

	job, err := scanJob(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get ingest job", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get ingest job: %w", err)
	}
	return job, nil
}

// ClaimQueued atomically moves up to limit queued jobs into UPLOADING state
// and returns them. The claim happens in a single transaction so concurrent
// workers never take the same job.
func (r *JobRepository) ClaimQueued(ctx context.Context, limit int) ([]*entity.IngestJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := `
		SELECT id, space_id, receipt_id, modality, payload_path, state, attempts,
			last_error, created_at, started_at, finished_at
		FROM ingest_jobs
		WHERE state = ?
		ORDER BY created_at
		LIMIT ?
	`

	rows, err := tx.QueryContext(ctx, selectQuery, entity.JobStateQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select queued jobs: %w", err)
	}

	var jobs []*entity.IngestJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan ingest job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate queued jobs: %w", err)
	}
	rows.Close()

	claimQuery := `
		UPDATE ingest_jobs
		SET state = ?, attempts = attempts + 1, started_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`

	claimed := jobs[:0]
	for _, job := range jobs {
		result, err := tx.ExecContext(ctx, claimQuery, entity.JobStateUploading, job.ID, entity.JobStateQueued)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if affected == 1 {
			job.State = entity.JobStateUploading
			job.Attempts++
			claimed = append(claimed, job)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return claimed, nil
}

// UpdateState records pipeline progress for observability
func (r *JobRepository) UpdateState(ctx context.Context, id, state string) error {
	query := `UPDATE ingest_jobs SET state = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, state, id)
	if err != nil {
		r.logger.Error("Failed to update job state",
			zap.String("id", id),
			zap.String("state", state),
			zap.Error(err))
		return fmt.Errorf("failed to update job state: %w", err)
	}
	return requireRowAffected(result, "ingest job", id)
}

// MarkCompleted moves the job to its successful terminal state
func (r *JobRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE ingest_jobs
		SET state = ?, last_error = '', finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.JobStateCompleted, id)
	if err != nil {
		r.logger.Error("Failed to mark job completed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return requireRowAffected(result, "ingest job", id)
}

// MarkFailed moves the job to its failed terminal state with the cause
func (r *JobRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	query := `
		UPDATE ingest_jobs
		SET state = ?, last_error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.JobStateFailed, errorMsg, id)
	if err != nil {
		r.logger.Error("Failed to mark job failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRowAffected(result, "ingest job", id)
}

func scanJob(row rowScanner) (*entity.IngestJob, error) {
	var job entity.IngestJob
	var lastError sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.SpaceID,
		&job.ReceiptID,
		&job.Modality,
		&job.PayloadPath,
		&job.State,
		&job.Attempts,
		&lastError,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.LastError = lastError.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

func (r *JobRepository) getExecutor(ctx context.Context) executor {
	return executorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.JobRepository = (*JobRepository)(nil)
