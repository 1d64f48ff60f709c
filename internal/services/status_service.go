package services

import (
	"context"
	"sort"

	"github.com/parcelscope/api/internal/config"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/repository"
	"github.com/parcelscope/api/internal/source"
)

// recentJobLimit bounds the job history attached to a status report.
const recentJobLimit = 20

// CountyStatus reports one county's coverage against the acceptance
// thresholds. Counties with a registered adapter appear even before their
// first ingestion run.
type CountyStatus struct {
	County       string  `json:"county"`
	Parcels      int     `json:"parcels"`
	WithGeometry int     `json:"withGeometry"`
	GeometryRate float64 `json:"geometryRate"`
	Accepted     bool    `json:"accepted"`
}

// StatusReport is the full pipeline status surface.
type StatusReport struct {
	Counties   []CountyStatus        `json:"counties"`
	RecentJobs []models.IngestionJob `json:"recentJobs"`
	Thresholds StatusThresholds      `json:"thresholds"`
}

// StatusThresholds echoes the acceptance configuration the report was
// evaluated against.
type StatusThresholds struct {
	MinRows         int     `json:"minRows"`
	MinGeometryRate float64 `json:"minGeometryRate"`
}

// StatusService assembles per-county coverage and recent ledger activity.
type StatusService interface {
	Report(ctx context.Context) (*StatusReport, error)
}

type statusService struct {
	parcels repository.ParcelRepository
	jobs    repository.JobRepository
	cfg     config.IngestConfig
	log     *logger.Logger
}

// NewStatusService creates a new instance of StatusService.
func NewStatusService(parcels repository.ParcelRepository, jobs repository.JobRepository, cfg config.IngestConfig, log *logger.Logger) StatusService {
	return &statusService{
		parcels: parcels,
		jobs:    jobs,
		cfg:     cfg,
		log:     log,
	}
}

// Report evaluates every supported county against the acceptance thresholds
// and attaches the most recent ledger rows.
func (s *statusService) Report(ctx context.Context) (*StatusReport, error) {
	counties := source.Supported()
	sort.Strings(counties)

	report := &StatusReport{
		Counties: make([]CountyStatus, 0, len(counties)),
		Thresholds: StatusThresholds{
			MinRows:         s.cfg.MinRows,
			MinGeometryRate: s.cfg.MinGeometryRate,
		},
	}

	for _, county := range counties {
		total, withGeometry, err := s.parcels.CountByCounty(ctx, county)
		if err != nil {
			return nil, err
		}

		status := CountyStatus{
			County:       county,
			Parcels:      total,
			WithGeometry: withGeometry,
		}
		if total > 0 {
			status.GeometryRate = float64(withGeometry) / float64(total)
		}
		status.Accepted = total >= s.cfg.MinRows && status.GeometryRate >= s.cfg.MinGeometryRate

		report.Counties = append(report.Counties, status)
	}

	jobs, err := s.jobs.Recent(ctx, recentJobLimit)
	if err != nil {
		return nil, err
	}
	report.RecentJobs = jobs

	return report, nil
}
