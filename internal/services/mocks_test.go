package services

import (
	"context"

	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockParcelRepository is a mock implementation of ParcelRepository for testing
type MockParcelRepository struct {
	mock.Mock
}

func (m *MockParcelRepository) UpsertBatch(ctx context.Context, parcels []*models.Parcel) ([]int64, error) {
	args := m.Called(ctx, parcels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockParcelRepository) FindByPIN(ctx context.Context, county, pin string) (*models.Parcel, error) {
	args := m.Called(ctx, county, pin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parcel), args.Error(1)
}

func (m *MockParcelRepository) CountByCounty(ctx context.Context, county string) (int, int, error) {
	args := m.Called(ctx, county)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockParcelRepository) MedianLandValue(ctx context.Context, county string) (*float64, error) {
	args := m.Called(ctx, county)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*float64), args.Error(1)
}

func (m *MockParcelRepository) MedianLandValuePerAcre(ctx context.Context, county string) (float64, error) {
	args := m.Called(ctx, county)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockParcelRepository) ListForScoring(ctx context.Context, county string, limit int) ([]*models.Parcel, error) {
	args := m.Called(ctx, county, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Parcel), args.Error(1)
}

func (m *MockParcelRepository) CountiesWithParcels(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

// MockJobRepository is a mock implementation of JobRepository for testing
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) FindIncomplete(ctx context.Context, county string) (*models.IngestionJob, error) {
	args := m.Called(ctx, county)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestionJob), args.Error(1)
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.IngestionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) UpdateProgress(ctx context.Context, job *models.IngestionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, job *models.IngestionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, job *models.IngestionJob, cause string) error {
	args := m.Called(ctx, job, cause)
	return args.Error(0)
}

func (m *MockJobRepository) Recent(ctx context.Context, limit int) ([]models.IngestionJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IngestionJob), args.Error(1)
}

// MockHistoryRepository is a mock implementation of HistoryRepository for testing
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) RecordBatch(ctx context.Context, snapshots []models.HistorySnapshot) (int, error) {
	args := m.Called(ctx, snapshots)
	return args.Int(0), args.Error(1)
}

func (m *MockHistoryRepository) ListByParcel(ctx context.Context, parcelID int64) ([]models.HistorySnapshot, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistorySnapshot), args.Error(1)
}

// MockScoreRepository is a mock implementation of ScoreRepository for testing
type MockScoreRepository struct {
	mock.Mock
}

func (m *MockScoreRepository) UpsertBatch(ctx context.Context, scores []models.Score) error {
	args := m.Called(ctx, scores)
	return args.Error(0)
}

func (m *MockScoreRepository) FindByParcel(ctx context.Context, parcelID int64) (*models.Score, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Score), args.Error(1)
}

func (m *MockScoreRepository) TopByCounty(ctx context.Context, county string, limit int, minScore float64) ([]repository.ScoredParcel, error) {
	args := m.Called(ctx, county, limit, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ScoredParcel), args.Error(1)
}
