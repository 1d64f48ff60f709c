package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parcelscope/api/internal/database"
	"github.com/parcelscope/api/internal/models"
)

// parcelColumns is the shared select list. Geometry comes back as GeoJSON so
// the model's Scanner can parse it.
const parcelColumns = `
	id,
	county,
	pin,
	source_seq,
	address,
	city,
	zip_code,
	land_value,
	building_value,
	total_value,
	use_code,
	use_decode,
	land_code,
	billing_class,
	deed_date,
	sale_date,
	sale_price,
	owner_name,
	owner_mailing,
	owner_type,
	acreage,
	ST_AsGeoJSON(geom) AS geometry,
	ST_AsGeoJSON(centroid) AS centroid,
	created_at,
	updated_at`

// upsertParcelSQL writes one canonical parcel keyed by (county, pin).
// On conflict every mutable field is overwritten with the incoming value
// (last-write-wins), never merged field by field.
const upsertParcelSQL = `
	INSERT INTO parcels (
		county, pin, source_seq, address, city, zip_code,
		land_value, building_value, total_value,
		use_code, use_decode, land_code, billing_class,
		deed_date, sale_date, sale_price,
		owner_name, owner_mailing, owner_type, acreage,
		geom, centroid, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9,
		$10, $11, $12, $13,
		$14, $15, $16,
		$17, $18, $19, $20,
		ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON($21::text), 4326)),
		ST_SetSRID(ST_GeomFromGeoJSON($22::text), 4326),
		now(), now()
	)
	ON CONFLICT (county, pin) DO UPDATE SET
		source_seq = EXCLUDED.source_seq,
		address = EXCLUDED.address,
		city = EXCLUDED.city,
		zip_code = EXCLUDED.zip_code,
		land_value = EXCLUDED.land_value,
		building_value = EXCLUDED.building_value,
		total_value = EXCLUDED.total_value,
		use_code = EXCLUDED.use_code,
		use_decode = EXCLUDED.use_decode,
		land_code = EXCLUDED.land_code,
		billing_class = EXCLUDED.billing_class,
		deed_date = EXCLUDED.deed_date,
		sale_date = EXCLUDED.sale_date,
		sale_price = EXCLUDED.sale_price,
		owner_name = EXCLUDED.owner_name,
		owner_mailing = EXCLUDED.owner_mailing,
		owner_type = EXCLUDED.owner_type,
		acreage = EXCLUDED.acreage,
		geom = EXCLUDED.geom,
		centroid = EXCLUDED.centroid,
		updated_at = now()
	RETURNING id`

// ParcelRepository defines the interface for parcel data access operations.
type ParcelRepository interface {
	// UpsertBatch writes the batch in one transaction keyed by (county, pin)
	// and returns the parcel IDs in input order. If any row fails, the whole
	// transaction rolls back and an error is returned.
	UpsertBatch(ctx context.Context, parcels []*models.Parcel) ([]int64, error)

	// FindByPIN returns the parcel for (county, pin).
	// Returns nil, nil if no parcel is found (not an error).
	FindByPIN(ctx context.Context, county, pin string) (*models.Parcel, error)

	// CountByCounty returns the total parcel count and the count with
	// polygon geometry for a county.
	CountByCounty(ctx context.Context, county string) (total int, withGeometry int, err error)

	// MedianLandValue returns the median assessed land value for a county.
	// Returns nil, nil when the county has no valued parcels.
	MedianLandValue(ctx context.Context, county string) (*float64, error)

	// MedianLandValuePerAcre returns the peer-group median of land value per
	// acre across a county's parcels that have both value and acreage.
	// Returns 0 when no parcel qualifies.
	MedianLandValuePerAcre(ctx context.Context, county string) (float64, error)

	// ListForScoring returns up to limit parcels in a county that have a
	// centroid, the minimum a score row needs to be useful on a map.
	ListForScoring(ctx context.Context, county string, limit int) ([]*models.Parcel, error)

	// CountiesWithParcels returns per-county parcel totals across the table.
	CountiesWithParcels(ctx context.Context) (map[string]int, error)
}

// parcelRepository is the concrete implementation of ParcelRepository.
type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new instance of ParcelRepository.
func NewParcelRepository(db *database.Database) ParcelRepository {
	return &parcelRepository{
		db: db,
	}
}

// UpsertBatch writes all parcels inside one transaction using a pgx batch.
func (r *parcelRepository) UpsertBatch(ctx context.Context, parcels []*models.Parcel) ([]int64, error) {
	if len(parcels) == 0 {
		return nil, nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range parcels {
		geomJSON, err := geoJSONOrNil(p.Geom)
		if err != nil {
			return nil, fmt.Errorf("failed to encode geometry for parcel %s: %w", p.PIN, err)
		}
		centroidJSON, err := pointJSONOrNil(p.Centroid)
		if err != nil {
			return nil, fmt.Errorf("failed to encode centroid for parcel %s: %w", p.PIN, err)
		}

		batch.Queue(upsertParcelSQL,
			p.County, p.PIN, p.SourceSeq, p.Address, p.City, p.ZipCode,
			p.LandValue, p.BuildingValue, p.TotalValue,
			p.UseCode, p.UseDecode, p.LandCode, p.BillingClass,
			p.DeedDate, p.SaleDate, p.SalePrice,
			p.OwnerName, p.OwnerMailing, p.OwnerType, p.Acreage,
			geomJSON, centroidJSON,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, 0, len(parcels))
	for i := range parcels {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to upsert parcel %s/%s: %w",
				parcels[i].County, parcels[i].PIN, err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to close upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit upsert batch: %w", err)
	}

	return ids, nil
}

// FindByPIN queries a single parcel by its natural key.
func (r *parcelRepository) FindByPIN(ctx context.Context, county, pin string) (*models.Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE county = $1 AND pin = $2 LIMIT 1`

	row := r.db.Pool.QueryRow(ctx, query, county, pin)
	parcel, err := scanParcel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query parcel %s/%s: %w", county, pin, err)
	}
	return parcel, nil
}

// CountByCounty returns total and geometry-bearing row counts in one pass.
func (r *parcelRepository) CountByCounty(ctx context.Context, county string) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(geom)
		FROM parcels
		WHERE county = $1`

	var total, withGeometry int
	if err := r.db.Pool.QueryRow(ctx, query, county).Scan(&total, &withGeometry); err != nil {
		return 0, 0, fmt.Errorf("failed to count parcels for county %s: %w", county, err)
	}
	return total, withGeometry, nil
}

// MedianLandValue computes the median assessed land value for the county.
func (r *parcelRepository) MedianLandValue(ctx context.Context, county string) (*float64, error) {
	query := `
		SELECT percentile_cont(0.5) WITHIN GROUP (ORDER BY land_value)
		FROM parcels
		WHERE county = $1 AND land_value IS NOT NULL`

	var median *float64
	if err := r.db.Pool.QueryRow(ctx, query, county).Scan(&median); err != nil {
		return nil, fmt.Errorf("failed to compute median land value for county %s: %w", county, err)
	}
	return median, nil
}

// MedianLandValuePerAcre computes the peer-group median used by the scoring
// engine's undervaluation term.
func (r *parcelRepository) MedianLandValuePerAcre(ctx context.Context, county string) (float64, error) {
	query := `
		SELECT COALESCE(percentile_cont(0.5) WITHIN GROUP (ORDER BY land_value / acreage), 0)
		FROM parcels
		WHERE county = $1 AND land_value IS NOT NULL AND acreage > 0`

	var median float64
	if err := r.db.Pool.QueryRow(ctx, query, county).Scan(&median); err != nil {
		return 0, fmt.Errorf("failed to compute median value per acre for county %s: %w", county, err)
	}
	return median, nil
}

// ListForScoring returns the county's scorable parcels.
func (r *parcelRepository) ListForScoring(ctx context.Context, county string, limit int) ([]*models.Parcel, error) {
	query := `SELECT ` + parcelColumns + `
		FROM parcels
		WHERE county = $1 AND centroid IS NOT NULL
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, county, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels for scoring (county=%s): %w", county, err)
	}
	defer rows.Close()

	var parcels []*models.Parcel
	for rows.Next() {
		parcel, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}
		parcels = append(parcels, parcel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}

	if parcels == nil {
		parcels = []*models.Parcel{}
	}
	return parcels, nil
}

// CountiesWithParcels aggregates parcel totals per county.
func (r *parcelRepository) CountiesWithParcels(ctx context.Context) (map[string]int, error) {
	query := `SELECT county, COUNT(*) FROM parcels GROUP BY county`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count parcels by county: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var county string
		var count int
		if err := rows.Scan(&county, &count); err != nil {
			return nil, fmt.Errorf("failed to scan county count row: %w", err)
		}
		counts[county] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating county count rows: %w", err)
	}
	return counts, nil
}

// scanParcel reads one row in parcelColumns order.
func scanParcel(row pgx.Row) (*models.Parcel, error) {
	var parcel models.Parcel
	var geomJSON, centroidJSON []byte

	err := row.Scan(
		&parcel.ID,
		&parcel.County,
		&parcel.PIN,
		&parcel.SourceSeq,
		&parcel.Address,
		&parcel.City,
		&parcel.ZipCode,
		&parcel.LandValue,
		&parcel.BuildingValue,
		&parcel.TotalValue,
		&parcel.UseCode,
		&parcel.UseDecode,
		&parcel.LandCode,
		&parcel.BillingClass,
		&parcel.DeedDate,
		&parcel.SaleDate,
		&parcel.SalePrice,
		&parcel.OwnerName,
		&parcel.OwnerMailing,
		&parcel.OwnerType,
		&parcel.Acreage,
		&geomJSON,
		&centroidJSON,
		&parcel.CreatedAt,
		&parcel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if geomJSON != nil {
		var geom models.MultiPolygon
		if err := geom.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for parcel %d: %w", parcel.ID, err)
		}
		parcel.Geom = &geom
	}
	if centroidJSON != nil {
		var centroid models.Point
		if err := centroid.Scan(centroidJSON); err != nil {
			return nil, fmt.Errorf("failed to parse centroid for parcel %d: %w", parcel.ID, err)
		}
		parcel.Centroid = &centroid
	}

	return &parcel, nil
}

// geoJSONOrNil renders a multipolygon as GeoJSON text, nil when absent.
func geoJSONOrNil(mp *models.MultiPolygon) (*string, error) {
	if mp == nil || len(mp.Coordinates) == 0 {
		return nil, nil
	}
	v, err := mp.Value()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// pointJSONOrNil renders a point as GeoJSON text, nil when absent.
func pointJSONOrNil(p *models.Point) (*string, error) {
	if p == nil {
		return nil, nil
	}
	v, err := p.Value()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	return &s, nil
}
