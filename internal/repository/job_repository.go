package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parcelscope/api/internal/database"
	"github.com/parcelscope/api/internal/models"
)

const jobColumns = `
	id,
	county,
	status,
	cursor_seq,
	records_processed,
	records_failed,
	records_with_geometry,
	pages_fetched,
	null_audit,
	median_land_val,
	last_error,
	started_at,
	updated_at,
	completed_at`

// JobRepository is the ingestion job ledger. A county's non-complete job row
// doubles as the resume anchor and the concurrency lock: re-invocations pick
// it up instead of creating a second one.
type JobRepository interface {
	// FindIncomplete returns the county's non-complete job: pending, running,
	// or failed. Failed jobs keep their cursor, so a retry resumes them.
	// Returns nil, nil when the county has no non-complete job.
	FindIncomplete(ctx context.Context, county string) (*models.IngestionJob, error)

	// Create inserts a fresh ledger row.
	Create(ctx context.Context, job *models.IngestionJob) error

	// UpdateProgress persists cursor position and counters. Called after
	// every page so a crash loses at most one page of progress.
	UpdateProgress(ctx context.Context, job *models.IngestionJob) error

	// MarkCompleted closes the job out with its final counts and the
	// county's median land value.
	MarkCompleted(ctx context.Context, job *models.IngestionJob) error

	// MarkFailed records the failure reason; the cursor keeps its last
	// committed value so a retry resumes, it does not restart.
	MarkFailed(ctx context.Context, job *models.IngestionJob, cause string) error

	// Recent returns the latest jobs across all counties, newest first.
	Recent(ctx context.Context, limit int) ([]models.IngestionJob, error)
}

type jobRepository struct {
	db *database.Database
}

// NewJobRepository creates a new instance of JobRepository.
func NewJobRepository(db *database.Database) JobRepository {
	return &jobRepository{
		db: db,
	}
}

// FindIncomplete looks for the county's resumable job.
func (r *jobRepository) FindIncomplete(ctx context.Context, county string) (*models.IngestionJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM ingestion_jobs
		WHERE county = $1 AND status IN ($2, $3, $4)
		ORDER BY started_at DESC
		LIMIT 1`

	row := r.db.Pool.QueryRow(ctx, query, county,
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusFailed)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query incomplete job for county %s: %w", county, err)
	}
	return job, nil
}

// Create inserts the ledger row for a new run.
func (r *jobRepository) Create(ctx context.Context, job *models.IngestionJob) error {
	query := `
		INSERT INTO ingestion_jobs (id, county, status, cursor_seq, started_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`

	_, err := r.db.Pool.Exec(ctx, query, job.ID, job.County, job.Status, job.Cursor)
	if err != nil {
		return fmt.Errorf("failed to create ingestion job for county %s: %w", job.County, err)
	}
	return nil
}

// UpdateProgress checkpoints the cursor and counters.
func (r *jobRepository) UpdateProgress(ctx context.Context, job *models.IngestionJob) error {
	audit, err := auditJSON(job.NullAudit)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			cursor_seq = $3,
			records_processed = $4,
			records_failed = $5,
			records_with_geometry = $6,
			pages_fetched = $7,
			null_audit = $8,
			updated_at = now()
		WHERE id = $1`

	_, err = r.db.Pool.Exec(ctx, query,
		job.ID, job.Status, job.Cursor,
		job.Processed, job.Failed, job.WithGeometry, job.PagesFetched, audit)
	if err != nil {
		return fmt.Errorf("failed to checkpoint job %s: %w", job.ID, err)
	}
	return nil
}

// MarkCompleted finalizes the job.
func (r *jobRepository) MarkCompleted(ctx context.Context, job *models.IngestionJob) error {
	audit, err := auditJSON(job.NullAudit)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			cursor_seq = $3,
			records_processed = $4,
			records_failed = $5,
			records_with_geometry = $6,
			pages_fetched = $7,
			null_audit = $8,
			median_land_val = $9,
			updated_at = now(),
			completed_at = now()
		WHERE id = $1`

	_, err = r.db.Pool.Exec(ctx, query,
		job.ID, models.JobStatusCompleted, job.Cursor,
		job.Processed, job.Failed, job.WithGeometry, job.PagesFetched,
		audit, job.MedianLandVal)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	return nil
}

// MarkFailed records the failure without touching the committed cursor.
func (r *jobRepository) MarkFailed(ctx context.Context, job *models.IngestionJob, cause string) error {
	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			last_error = $3,
			updated_at = now()
		WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, job.ID, models.JobStatusFailed, cause)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", job.ID, err)
	}
	return nil
}

// Recent lists the latest ledger rows.
func (r *jobRepository) Recent(ctx context.Context, limit int) ([]models.IngestionJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM ingestion_jobs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	if jobs == nil {
		jobs = []models.IngestionJob{}
	}
	return jobs, nil
}

// scanJob reads one row in jobColumns order.
func scanJob(row pgx.Row) (*models.IngestionJob, error) {
	var job models.IngestionJob
	var audit []byte

	err := row.Scan(
		&job.ID,
		&job.County,
		&job.Status,
		&job.Cursor,
		&job.Processed,
		&job.Failed,
		&job.WithGeometry,
		&job.PagesFetched,
		&audit,
		&job.MedianLandVal,
		&job.LastError,
		&job.StartedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if audit != nil {
		if err := json.Unmarshal(audit, &job.NullAudit); err != nil {
			return nil, fmt.Errorf("failed to parse null audit for job %s: %w", job.ID, err)
		}
	}

	return &job, nil
}

func auditJSON(audit map[string]int) ([]byte, error) {
	if audit == nil {
		return nil, nil
	}
	data, err := json.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("failed to encode null audit: %w", err)
	}
	return data, nil
}
