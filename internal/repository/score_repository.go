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

// ScoredParcel pairs a parcel with its score for ranked listings.
type ScoredParcel struct {
	Parcel models.Parcel
	Score  models.Score
}

// ScoreRepository persists the 1:1 derived score per parcel. Each row is
// written as one atomic unit; re-scoring replaces the prior row entirely.
type ScoreRepository interface {
	// UpsertBatch writes score rows in one transaction, overwriting on
	// conflict by parcel reference.
	UpsertBatch(ctx context.Context, scores []models.Score) error

	// FindByParcel returns the parcel's current score.
	// Returns nil, nil when the parcel has not been scored.
	FindByParcel(ctx context.Context, parcelID int64) (*models.Score, error)

	// TopByCounty returns scored parcels ordered by investment score
	// descending. county may be empty to rank across all counties; minScore
	// filters out rows below the threshold.
	TopByCounty(ctx context.Context, county string, limit int, minScore float64) ([]ScoredParcel, error)
}

type scoreRepository struct {
	db *database.Database
}

// NewScoreRepository creates a new instance of ScoreRepository.
func NewScoreRepository(db *database.Database) ScoreRepository {
	return &scoreRepository{
		db: db,
	}
}

const upsertScoreSQL = `
	INSERT INTO parcel_scores (
		parcel_id, rezoning_probability, investment_score,
		yoy_change, undervaluation_pct, explanations, model_version, computed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (parcel_id) DO UPDATE SET
		rezoning_probability = EXCLUDED.rezoning_probability,
		investment_score = EXCLUDED.investment_score,
		yoy_change = EXCLUDED.yoy_change,
		undervaluation_pct = EXCLUDED.undervaluation_pct,
		explanations = EXCLUDED.explanations,
		model_version = EXCLUDED.model_version,
		computed_at = EXCLUDED.computed_at`

// UpsertBatch writes all score rows in a single transaction.
func (r *scoreRepository) UpsertBatch(ctx context.Context, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin score transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range scores {
		explanations, err := json.Marshal(s.Explanations)
		if err != nil {
			return fmt.Errorf("failed to encode explanations for parcel %d: %w", s.ParcelID, err)
		}
		batch.Queue(upsertScoreSQL,
			s.ParcelID, s.RezoningProbability, s.InvestmentScore,
			s.YoYChange, s.UndervaluationPct, explanations, s.ModelVersion, s.ComputedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range scores {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert score for parcel %d: %w", scores[i].ParcelID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close score batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit score batch: %w", err)
	}

	return nil
}

// FindByParcel returns a parcel's current score row.
func (r *scoreRepository) FindByParcel(ctx context.Context, parcelID int64) (*models.Score, error) {
	query := `
		SELECT parcel_id, rezoning_probability, investment_score,
			yoy_change, undervaluation_pct, explanations, model_version, computed_at
		FROM parcel_scores
		WHERE parcel_id = $1`

	var score models.Score
	var explanations []byte

	err := r.db.Pool.QueryRow(ctx, query, parcelID).Scan(
		&score.ParcelID,
		&score.RezoningProbability,
		&score.InvestmentScore,
		&score.YoYChange,
		&score.UndervaluationPct,
		&explanations,
		&score.ModelVersion,
		&score.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query score for parcel %d: %w", parcelID, err)
	}

	if err := json.Unmarshal(explanations, &score.Explanations); err != nil {
		return nil, fmt.Errorf("failed to parse explanations for parcel %d: %w", parcelID, err)
	}

	return &score, nil
}

// TopByCounty ranks scored parcels by investment score.
func (r *scoreRepository) TopByCounty(ctx context.Context, county string, limit int, minScore float64) ([]ScoredParcel, error) {
	query := `
		SELECT ` + parcelColumns + `,
			s.rezoning_probability, s.investment_score,
			s.yoy_change, s.undervaluation_pct, s.explanations, s.model_version, s.computed_at
		FROM parcel_scores s
		JOIN parcels ON parcels.id = s.parcel_id
		WHERE ($1 = '' OR parcels.county = $1) AND s.investment_score >= $2
		ORDER BY s.investment_score DESC
		LIMIT $3`

	rows, err := r.db.Pool.Query(ctx, query, county, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top parcels (county=%s): %w", county, err)
	}
	defer rows.Close()

	var results []ScoredParcel
	for rows.Next() {
		sp, err := scanScoredParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scored parcel row: %w", err)
		}
		results = append(results, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scored parcel rows: %w", err)
	}

	if results == nil {
		results = []ScoredParcel{}
	}
	return results, nil
}

// scanScoredParcel reads parcelColumns followed by the score columns.
func scanScoredParcel(rows pgx.Rows) (*ScoredParcel, error) {
	var sp ScoredParcel
	var geomJSON, centroidJSON, explanations []byte
	p := &sp.Parcel
	s := &sp.Score

	err := rows.Scan(
		&p.ID, &p.County, &p.PIN, &p.SourceSeq,
		&p.Address, &p.City, &p.ZipCode,
		&p.LandValue, &p.BuildingValue, &p.TotalValue,
		&p.UseCode, &p.UseDecode, &p.LandCode, &p.BillingClass,
		&p.DeedDate, &p.SaleDate, &p.SalePrice,
		&p.OwnerName, &p.OwnerMailing, &p.OwnerType, &p.Acreage,
		&geomJSON, &centroidJSON, &p.CreatedAt, &p.UpdatedAt,
		&s.RezoningProbability, &s.InvestmentScore,
		&s.YoYChange, &s.UndervaluationPct, &explanations, &s.ModelVersion, &s.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ParcelID = p.ID

	if geomJSON != nil {
		var geom models.MultiPolygon
		if err := geom.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for parcel %d: %w", p.ID, err)
		}
		p.Geom = &geom
	}
	if centroidJSON != nil {
		var centroid models.Point
		if err := centroid.Scan(centroidJSON); err != nil {
			return nil, fmt.Errorf("failed to parse centroid for parcel %d: %w", p.ID, err)
		}
		p.Centroid = &centroid
	}
	if err := json.Unmarshal(explanations, &s.Explanations); err != nil {
		return nil, fmt.Errorf("failed to parse explanations for parcel %d: %w", p.ID, err)
	}

	return &sp, nil
}
