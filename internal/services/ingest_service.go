package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/parcelscope/api/internal/ingest"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/repository"
	"github.com/parcelscope/api/internal/source"
)

// ErrUnsupportedCounty is returned when no source adapter exists for the
// requested county. The check runs before any ledger or network I/O, so an
// unsupported request leaves no trace in the job table.
var ErrUnsupportedCounty = errors.New("county is not supported")

// IngestService triggers deadline-bounded ingestion runs per county,
// resuming an incomplete job when one exists.
type IngestService interface {
	// Ingest runs one invocation for the county and returns its outcome.
	Ingest(ctx context.Context, county string) (*ingest.RunResult, error)

	// SupportedCounties lists the counties with a registered source adapter.
	SupportedCounties() []string
}

type ingestService struct {
	fetcher *ingest.Fetcher
	jobs    repository.JobRepository
	log     *logger.Logger
}

// NewIngestService creates a new instance of IngestService.
func NewIngestService(fetcher *ingest.Fetcher, jobs repository.JobRepository, log *logger.Logger) IngestService {
	return &ingestService{
		fetcher: fetcher,
		jobs:    jobs,
		log:     log,
	}
}

// Ingest resolves the county's adapter, finds or creates its ledger job, and
// hands off to the fetcher. A county whose previous run ended in_progress or
// failed resumes from the committed cursor.
func (s *ingestService) Ingest(ctx context.Context, county string) (*ingest.RunResult, error) {
	county = strings.ToLower(strings.TrimSpace(county))

	fm, err := source.Adapter(county)
	if err != nil {
		return nil, ErrUnsupportedCounty
	}

	job, err := s.jobs.FindIncomplete(ctx, county)
	if err != nil {
		return nil, err
	}

	if job == nil {
		job = &models.IngestionJob{
			ID:     uuid.NewString(),
			County: county,
			Status: models.JobStatusPending,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, err
		}
		s.log.Info("Created ingestion job", map[string]interface{}{
			"county": county,
			"job_id": job.ID,
		})
	} else {
		s.log.Info("Resuming ingestion job", map[string]interface{}{
			"county": county,
			"job_id": job.ID,
			"cursor": job.Cursor,
		})
	}

	return s.fetcher.Run(ctx, fm, job)
}

// SupportedCounties exposes the adapter registry for the status surface.
func (s *ingestService) SupportedCounties() []string {
	return source.Supported()
}
