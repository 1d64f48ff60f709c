package services

import (
	"context"
	"errors"
	"strings"

	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/repository"
)

// ErrParcelNotFound is returned when no parcel matches the requested
// county and PIN.
var ErrParcelNotFound = errors.New("parcel not found")

// ParcelDetail is the full read-side view of one parcel: the canonical row,
// its current score when one exists, and its snapshot history newest first.
type ParcelDetail struct {
	Parcel  *models.Parcel           `json:"parcel"`
	Score   *models.Score            `json:"score,omitempty"`
	History []models.HistorySnapshot `json:"history"`
}

// ParcelService serves the parcel read surface: ranked listings and
// per-parcel detail.
type ParcelService interface {
	// GetTopParcels returns scored parcels ranked by investment score.
	// county may be empty to rank across all counties.
	GetTopParcels(ctx context.Context, county string, limit int, minScore float64) ([]repository.ScoredParcel, error)

	// GetParcelDetail returns the parcel with its score and history.
	// Returns ErrParcelNotFound when the (county, pin) pair is unknown.
	GetParcelDetail(ctx context.Context, county, pin string) (*ParcelDetail, error)
}

type parcelService struct {
	parcels repository.ParcelRepository
	scores  repository.ScoreRepository
	history repository.HistoryRepository
	log     *logger.Logger
}

// NewParcelService creates a new instance of ParcelService.
func NewParcelService(
	parcels repository.ParcelRepository,
	scores repository.ScoreRepository,
	history repository.HistoryRepository,
	log *logger.Logger,
) ParcelService {
	return &parcelService{
		parcels: parcels,
		scores:  scores,
		history: history,
		log:     log,
	}
}

// GetTopParcels returns the ranked listing.
func (s *parcelService) GetTopParcels(ctx context.Context, county string, limit int, minScore float64) ([]repository.ScoredParcel, error) {
	county = strings.ToLower(strings.TrimSpace(county))
	return s.scores.TopByCounty(ctx, county, limit, minScore)
}

// GetParcelDetail assembles the parcel, its score, and its history. A parcel
// without a score is still returned; scoring lags ingestion.
func (s *parcelService) GetParcelDetail(ctx context.Context, county, pin string) (*ParcelDetail, error) {
	county = strings.ToLower(strings.TrimSpace(county))
	pin = strings.TrimSpace(pin)

	parcel, err := s.parcels.FindByPIN(ctx, county, pin)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}

	score, err := s.scores.FindByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.history.ListByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, err
	}

	return &ParcelDetail{
		Parcel:  parcel,
		Score:   score,
		History: history,
	}, nil
}
