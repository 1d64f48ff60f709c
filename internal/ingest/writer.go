package ingest

import (
	"context"
	"time"

	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/repository"
)

// BatchWriter upserts normalized parcels in bounded transactional batches
// and records a history snapshot for every successful write. A rejected
// batch is retried once in halves before its rows are counted as failed, so
// one poison row cannot silently sink a whole page.
type BatchWriter struct {
	parcels   repository.ParcelRepository
	history   repository.HistoryRepository
	log       *logger.Logger
	batchSize int
}

// WriteResult reports what happened to one page of parcels.
type WriteResult struct {
	Written   int
	Failed    int
	Snapshots int
}

// NewBatchWriter creates a BatchWriter with the given batch size bound.
func NewBatchWriter(parcels repository.ParcelRepository, history repository.HistoryRepository, batchSize int, log *logger.Logger) *BatchWriter {
	return &BatchWriter{
		parcels:   parcels,
		history:   history,
		batchSize: batchSize,
		log:       log,
	}
}

// Write upserts the page in batches and snapshots each written parcel with
// the run's as-of date. Write errors are absorbed into the failure count;
// the caller advances the cursor regardless, because re-fetching the same
// page would repeat the same failures.
func (w *BatchWriter) Write(ctx context.Context, page []*models.Parcel, asOf time.Time) WriteResult {
	var result WriteResult

	for start := 0; start < len(page); start += w.batchSize {
		end := start + w.batchSize
		if end > len(page) {
			end = len(page)
		}
		w.writeBatch(ctx, page[start:end], asOf, &result)
	}

	return result
}

// writeBatch attempts one transactional upsert, splitting once on failure.
func (w *BatchWriter) writeBatch(ctx context.Context, batch []*models.Parcel, asOf time.Time, result *WriteResult) {
	ids, err := w.parcels.UpsertBatch(ctx, batch)
	if err == nil {
		result.Written += len(batch)
		result.Snapshots += w.snapshot(ctx, batch, ids, asOf)
		return
	}

	w.log.Warn("Batch upsert rejected, retrying in halves", map[string]interface{}{
		"batch_size": len(batch),
		"error":      err.Error(),
	})

	if len(batch) == 1 {
		result.Failed++
		return
	}

	mid := len(batch) / 2
	for _, half := range [][]*models.Parcel{batch[:mid], batch[mid:]} {
		ids, err := w.parcels.UpsertBatch(ctx, half)
		if err != nil {
			w.log.Error("Batch upsert failed after split", err, map[string]interface{}{
				"batch_size": len(half),
			})
			result.Failed += len(half)
			continue
		}
		result.Written += len(half)
		result.Snapshots += w.snapshot(ctx, half, ids, asOf)
	}
}

// snapshot records one dated history row per written parcel. Duplicate
// (parcel, date) pairs are no-ops in the repository, which is what keeps
// same-day re-runs from corrupting history.
func (w *BatchWriter) snapshot(ctx context.Context, batch []*models.Parcel, ids []int64, asOf time.Time) int {
	snapshots := make([]models.HistorySnapshot, 0, len(batch))
	for i, p := range batch {
		snapshots = append(snapshots, models.HistorySnapshot{
			ParcelID:     ids[i],
			SnapshotDate: asOf,
			LandValue:    p.LandValue,
			TotalValue:   p.TotalValue,
			UseCode:      p.UseCode,
			Source:       models.SnapshotSourceIngest,
		})
	}

	inserted, err := w.history.RecordBatch(ctx, snapshots)
	if err != nil {
		// Losing a snapshot degrades trend quality but does not invalidate
		// the parcel write; the next run's snapshot fills the gap.
		w.log.Error("Failed to record history snapshots", err, map[string]interface{}{
			"count": len(snapshots),
		})
		return 0
	}
	return inserted
}
