package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/models"
)

func (db *DB) CreateVideoJob(ctx context.Context, job *models.VideoJob) error {
	query := `
		INSERT INTO video_jobs (
			id, user_id, listing_id, flow, status, progress, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.UserID, job.ListingID, job.Flow, job.Status, job.Progress, job.Version,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetVideoJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error) {
	query := `
		SELECT
			id, user_id, listing_id, flow, status, progress, video_url,
			error_code, error_message, version, created_at, updated_at, completed_at
		FROM video_jobs
		WHERE id = $1
	`

	job := &models.VideoJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.ListingID, &job.Flow, &job.Status,
		&job.Progress, &job.VideoURL, &job.ErrorCode, &job.ErrorMessage,
		&job.Version, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video job: %w", err)
	}

	return job, nil
}

// ListVideoJobs returns jobs ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListVideoJobs(ctx context.Context, status string, limit, offset int) ([]models.VideoJob, error) {
	query := `
		SELECT
			id, user_id, listing_id, flow, status, progress, video_url,
			error_code, error_message, version, created_at, updated_at, completed_at
		FROM video_jobs
	`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query video jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.VideoJob
	for rows.Next() {
		var job models.VideoJob
		err := rows.Scan(
			&job.ID, &job.UserID, &job.ListingID, &job.Flow, &job.Status,
			&job.Progress, &job.VideoURL, &job.ErrorCode, &job.ErrorMessage,
			&job.Version, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (db *DB) CountVideoJobs(ctx context.Context, status string) (int, error) {
	var count int
	var err error
	if status != "" {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_jobs WHERE status = $1`, status).Scan(&count)
	} else {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_jobs`).Scan(&count)
	}
	return count, err
}

// UpdateJobProgress advances a non-terminal job. GREATEST keeps progress
// monotonically non-decreasing even if poll ticks land out of order.
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, status models.VideoJobStatus, progress int) error {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $3 AND status IN ('processing', 'stitching')
	`
	_, err := db.ExecContext(ctx, query, status, progress, id)
	return err
}

// CompleteVideoJob finalizes a job exactly once. The status guard plus
// version check makes a concurrent or late terminal write a no-op instead of
// an interleaved overwrite.
func (db *DB) CompleteVideoJob(ctx context.Context, id uuid.UUID, version int, videoURL string) (bool, error) {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 100, video_url = $2,
		    completed_at = $3, updated_at = NOW(), version = version + 1
		WHERE id = $4 AND version = $5 AND status IN ('processing', 'stitching')
	`

	res, err := db.ExecContext(ctx, query, models.VideoJobStatusCompleted, videoURL, time.Now(), id, version)
	if err != nil {
		return false, fmt.Errorf("failed to complete video job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FailVideoJob finalizes a job as failed under the same guard as completion.
func (db *DB) FailVideoJob(ctx context.Context, id uuid.UUID, version int, errorCode, errorMessage string) (bool, error) {
	query := `
		UPDATE video_jobs
		SET status = $1, error_code = $2, error_message = $3,
		    completed_at = $4, updated_at = NOW(), version = version + 1
		WHERE id = $5 AND version = $6 AND status IN ('processing', 'stitching')
	`

	res, err := db.ExecContext(ctx, query, models.VideoJobStatusFailed, errorCode, errorMessage, time.Now(), id, version)
	if err != nil {
		return false, fmt.Errorf("failed to fail video job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SweepStaleJobs force-fails non-terminal jobs that have not been touched
// since the cutoff. Covers jobs whose poller went away (closed tab, worker
// crash) and would otherwise sit in processing forever.
func (db *DB) SweepStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE video_jobs
		SET status = $1, error_code = 'timeout',
		    error_message = 'Video generation was abandoned and timed out',
		    completed_at = NOW(), updated_at = NOW(), version = version + 1
		WHERE status IN ('processing', 'stitching') AND updated_at < $2
	`

	res, err := db.ExecContext(ctx, query, models.VideoJobStatusFailed, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale jobs: %w", err)
	}

	return res.RowsAffected()
}
