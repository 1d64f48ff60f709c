package services

import (
	"context"
	"strings"
	"time"

	"github.com/parcelscope/api/internal/config"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/observability"
	"github.com/parcelscope/api/internal/repository"
	"github.com/parcelscope/api/internal/scoring"
	"github.com/parcelscope/api/internal/signals"
	"github.com/parcelscope/api/internal/source"
)

// scoreBatchSize bounds each score upsert transaction.
const scoreBatchSize = 100

// ScoreRun summarizes one county scoring pass.
type ScoreRun struct {
	County            string    `json:"county"`
	Scored            int       `json:"scored"`
	Skipped           int       `json:"skipped"`
	PeerMedianPerAcre float64   `json:"peerMedianPerAcre"`
	ComputedAt        time.Time `json:"computedAt"`
}

// ScoringService derives trend signals and composite scores for every
// scorable parcel in a county. Parcels are independent, so a run can be
// repeated at any time; re-scoring replaces prior rows wholesale.
type ScoringService interface {
	// ScoreCounty scores all scorable parcels in the county.
	ScoreCounty(ctx context.Context, county string) (*ScoreRun, error)
}

type scoringService struct {
	parcels repository.ParcelRepository
	history repository.HistoryRepository
	scores  repository.ScoreRepository
	cfg     config.IngestConfig
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewScoringService creates a new instance of ScoringService.
func NewScoringService(
	parcels repository.ParcelRepository,
	history repository.HistoryRepository,
	scores repository.ScoreRepository,
	cfg config.IngestConfig,
	metrics *observability.Metrics,
	log *logger.Logger,
) ScoringService {
	return &scoringService{
		parcels: parcels,
		history: history,
		scores:  scores,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// ScoreCounty loads the county's scorable parcels, computes each parcel's
// signals from its snapshot history, and upserts score rows in bounded
// batches. The peer median per acre is computed once per run so every parcel
// in the county is ranked against the same baseline.
func (s *scoringService) ScoreCounty(ctx context.Context, county string) (*ScoreRun, error) {
	county = strings.ToLower(strings.TrimSpace(county))
	if _, err := source.Adapter(county); err != nil {
		return nil, ErrUnsupportedCounty
	}

	now := time.Now().UTC()

	peerMedian, err := s.parcels.MedianLandValuePerAcre(ctx, county)
	if err != nil {
		return nil, err
	}

	parcels, err := s.parcels.ListForScoring(ctx, county, s.cfg.ScoreLimit)
	if err != nil {
		return nil, err
	}

	run := &ScoreRun{
		County:            county,
		PeerMedianPerAcre: peerMedian,
		ComputedAt:        now,
	}

	batch := make([]models.Score, 0, scoreBatchSize)
	for _, parcel := range parcels {
		history, err := s.history.ListByParcel(ctx, parcel.ID)
		if err != nil {
			s.log.Warn("Skipping parcel with unreadable history", map[string]interface{}{
				"parcel_id": parcel.ID,
				"error":     err.Error(),
			})
			run.Skipped++
			continue
		}

		score := scoring.Score(scoring.Input{
			Now:               now,
			Parcel:            parcel,
			Signals:           signals.Compute(history),
			PeerMedianPerAcre: peerMedian,
		})

		batch = append(batch, score)
		if len(batch) == scoreBatchSize {
			if err := s.flush(ctx, county, batch, run); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if err := s.flush(ctx, county, batch, run); err != nil {
		return nil, err
	}

	s.log.Info("Scoring run finished", map[string]interface{}{
		"county":      county,
		"scored":      run.Scored,
		"skipped":     run.Skipped,
		"peer_median": peerMedian,
	})

	return run, nil
}

func (s *scoringService) flush(ctx context.Context, county string, batch []models.Score, run *ScoreRun) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.scores.UpsertBatch(ctx, batch); err != nil {
		return err
	}
	run.Scored += len(batch)
	s.metrics.ParcelsScored.WithLabelValues(county).Add(float64(len(batch)))
	return nil
}
