package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/parcelscope/api/internal/config"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/observability"
	"github.com/parcelscope/api/internal/repository"
	"github.com/parcelscope/api/internal/source"
)

// Run outcome states reported to the trigger caller.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in_progress"
	StatusFailed     = "failed"
)

// RunResult is the outcome of one ingestion invocation.
// Job carries the ledger state as of the end of the invocation; Source is
// set when the run failed on an external API response.
type RunResult struct {
	Job    models.IngestionJob
	Source *source.SourceError
	Status string
}

// Fetcher drives one deadline-bounded ingestion invocation: it pages through
// the county's source in ascending sequence order, upserts each page, and
// checkpoints the job ledger after every page. It is single-threaded per
// invocation; the ledger's non-complete job row keeps counties from being
// processed twice concurrently.
type Fetcher struct {
	client  source.Client
	writer  *BatchWriter
	jobs    repository.JobRepository
	parcels repository.ParcelRepository
	clock   clockwork.Clock
	metrics *observability.Metrics
	log     *logger.Logger
	cfg     config.IngestConfig
}

// NewFetcher wires a Fetcher. The clock is injected so tests can drive the
// deadline without waiting on it.
func NewFetcher(
	client source.Client,
	writer *BatchWriter,
	jobs repository.JobRepository,
	parcels repository.ParcelRepository,
	clock clockwork.Clock,
	cfg config.IngestConfig,
	metrics *observability.Metrics,
	log *logger.Logger,
) *Fetcher {
	return &Fetcher{
		client:  client,
		writer:  writer,
		jobs:    jobs,
		parcels: parcels,
		clock:   clock,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// Run executes one invocation against the given ledger job, resuming from
// its cursor. It returns completed when the source reports no further pages,
// in_progress when the deadline truncates the run, and failed on a source
// error. Ledger state is committed page by page, so a crash mid-run loses at
// most one page of progress.
func (f *Fetcher) Run(ctx context.Context, fm source.FieldMap, job *models.IngestionJob) (*RunResult, error) {
	started := f.clock.Now()
	deadline := started.Add(f.cfg.Deadline)
	asOf := truncateToDate(started)

	runLog := f.log.With(map[string]interface{}{
		"county": job.County,
		"job_id": job.ID,
		"cursor": job.Cursor,
	})

	if job.NullAudit == nil {
		job.NullAudit = make(map[string]int)
	}
	job.Status = models.JobStatusRunning

	f.metrics.RunsActive.Inc()
	defer f.metrics.RunsActive.Dec()

	for {
		if !f.clock.Now().Before(deadline) {
			return f.suspend(ctx, job, runLog, started)
		}

		page, err := f.client.FetchPage(ctx, fm, job.Cursor, f.cfg.PageSize)
		if err != nil {
			return f.fail(ctx, job, runLog, started, err)
		}

		if len(page.Features) == 0 {
			return f.complete(ctx, job, runLog, started)
		}

		pageResult := f.processPage(ctx, fm, job, page, asOf)

		// The cursor only ever moves forward: duplicate or out-of-order
		// records within a page cannot regress it.
		if page.MaxSequence > job.Cursor {
			job.Cursor = page.MaxSequence
		}
		job.PagesFetched++

		if err := f.jobs.UpdateProgress(ctx, job); err != nil {
			return nil, err
		}

		f.metrics.PagesFetched.WithLabelValues(job.County).Inc()
		f.metrics.RecordsProcessed.WithLabelValues(job.County).Add(float64(pageResult.Written))
		f.metrics.SnapshotsWritten.WithLabelValues(job.County).Add(float64(pageResult.Snapshots))

		runLog.Info("Page processed", map[string]interface{}{
			"cursor":        job.Cursor,
			"page_features": len(page.Features),
			"processed":     job.Processed,
			"failed":        job.Failed,
			"with_geometry": job.WithGeometry,
		})
	}
}

// processPage normalizes and writes one page, folding counts into the job.
func (f *Fetcher) processPage(ctx context.Context, fm source.FieldMap, job *models.IngestionJob, page *source.Page, asOf time.Time) WriteResult {
	parcels := make([]*models.Parcel, 0, len(page.Features))
	for _, feature := range page.Features {
		parcel, err := buildParcel(fm, job.County, feature)
		if err != nil {
			// Missing PIN or unsupported geometry: counted, not fatal.
			job.Failed++
			f.metrics.RecordsFailed.WithLabelValues(job.County, "validation").Inc()
			f.log.Warn("Skipping invalid record", map[string]interface{}{
				"county": job.County,
				"error":  err.Error(),
			})
			continue
		}
		if parcel.HasGeometry() {
			job.WithGeometry++
		}
		auditNulls(parcel, job.NullAudit)
		parcels = append(parcels, parcel)
	}

	result := f.writer.Write(ctx, parcels, asOf)
	job.Processed += result.Written
	job.Failed += result.Failed
	if result.Failed > 0 {
		f.metrics.RecordsFailed.WithLabelValues(job.County, "write").Add(float64(result.Failed))
	}
	return result
}

// complete closes the job out, computing the county's median land value for
// the ledger row.
func (f *Fetcher) complete(ctx context.Context, job *models.IngestionJob, runLog *logger.Logger, started time.Time) (*RunResult, error) {
	median, err := f.parcels.MedianLandValue(ctx, job.County)
	if err != nil {
		runLog.Error("Failed to compute median land value", err, nil)
	} else {
		job.MedianLandVal = median
	}

	job.Status = models.JobStatusCompleted
	if err := f.jobs.MarkCompleted(ctx, job); err != nil {
		return nil, err
	}

	f.observeRun(job.County, StatusCompleted, started)
	runLog.Info("Ingestion run completed", map[string]interface{}{
		"processed":     job.Processed,
		"failed":        job.Failed,
		"with_geometry": job.WithGeometry,
		"pages":         job.PagesFetched,
	})

	return &RunResult{Status: StatusCompleted, Job: *job}, nil
}

// suspend checkpoints and reports in-progress; the caller re-invokes to
// resume from the committed cursor.
func (f *Fetcher) suspend(ctx context.Context, job *models.IngestionJob, runLog *logger.Logger, started time.Time) (*RunResult, error) {
	if err := f.jobs.UpdateProgress(ctx, job); err != nil {
		return nil, err
	}

	f.observeRun(job.County, StatusInProgress, started)
	runLog.Info("Ingestion run suspended at deadline", map[string]interface{}{
		"cursor":    job.Cursor,
		"processed": job.Processed,
	})

	return &RunResult{Status: StatusInProgress, Job: *job}, nil
}

// fail records the failure; ledger state already committed is untouched, so
// a retry resumes from the last good checkpoint.
func (f *Fetcher) fail(ctx context.Context, job *models.IngestionJob, runLog *logger.Logger, started time.Time, cause error) (*RunResult, error) {
	job.Status = models.JobStatusFailed
	msg := cause.Error()
	job.LastError = &msg
	if err := f.jobs.MarkFailed(ctx, job, msg); err != nil {
		return nil, err
	}

	f.observeRun(job.County, StatusFailed, started)
	runLog.Error("Ingestion run failed", cause, map[string]interface{}{
		"cursor": job.Cursor,
	})

	result := &RunResult{Status: StatusFailed, Job: *job}
	var srcErr *source.SourceError
	if errors.As(cause, &srcErr) {
		result.Source = srcErr
	}
	return result, nil
}

func (f *Fetcher) observeRun(county, status string, started time.Time) {
	f.metrics.RunDuration.WithLabelValues(county, status).
		Observe(f.clock.Now().Sub(started).Seconds())
}

// truncateToDate drops the time-of-day component; snapshots are keyed by the
// run's ingestion date, not per-record timestamps.
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
