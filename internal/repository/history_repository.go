package repository

import (
	"context"
	"fmt"

	"github.com/parcelscope/api/internal/database"
	"github.com/parcelscope/api/internal/models"
)

// HistoryRepository persists dated snapshots of mutable parcel attributes.
// Writes are idempotent per (parcel, date): re-running ingestion for the same
// day leaves exactly one row per parcel, which is what makes runs safely
// re-triggerable.
type HistoryRepository interface {
	// RecordBatch inserts snapshots, skipping any (parcel, date) pair that
	// already exists. Returns how many rows were actually inserted.
	RecordBatch(ctx context.Context, snapshots []models.HistorySnapshot) (int, error)

	// ListByParcel returns a parcel's full snapshot history, newest first.
	ListByParcel(ctx context.Context, parcelID int64) ([]models.HistorySnapshot, error)
}

type historyRepository struct {
	db *database.Database
}

// NewHistoryRepository creates a new instance of HistoryRepository.
func NewHistoryRepository(db *database.Database) HistoryRepository {
	return &historyRepository{
		db: db,
	}
}

// RecordBatch writes the page's snapshots in one transaction.
func (r *historyRepository) RecordBatch(ctx context.Context, snapshots []models.HistorySnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO history_snapshots (parcel_id, snapshot_date, land_value, total_value, use_code, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (parcel_id, snapshot_date) DO NOTHING`

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range snapshots {
		tag, err := tx.Exec(ctx, query,
			s.ParcelID, s.SnapshotDate, s.LandValue, s.TotalValue, s.UseCode, s.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to record snapshot for parcel %d: %w", s.ParcelID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot batch: %w", err)
	}

	return inserted, nil
}

// ListByParcel loads the snapshot history ordered by date descending.
func (r *historyRepository) ListByParcel(ctx context.Context, parcelID int64) ([]models.HistorySnapshot, error) {
	query := `
		SELECT id, parcel_id, snapshot_date, land_value, total_value, use_code, source
		FROM history_snapshots
		WHERE parcel_id = $1
		ORDER BY snapshot_date DESC`

	rows, err := r.db.Pool.Query(ctx, query, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for parcel %d: %w", parcelID, err)
	}
	defer rows.Close()

	var snapshots []models.HistorySnapshot
	for rows.Next() {
		var s models.HistorySnapshot
		err := rows.Scan(&s.ID, &s.ParcelID, &s.SnapshotDate, &s.LandValue, &s.TotalValue, &s.UseCode, &s.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	if snapshots == nil {
		snapshots = []models.HistorySnapshot{}
	}
	return snapshots, nil
}
