package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the four logical tables and their indexes on
// first boot. Everything uses IF NOT EXISTS so re-running against an
// existing database is a no-op.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS parcels (
		id BIGSERIAL PRIMARY KEY,
		county TEXT NOT NULL,
		pin TEXT NOT NULL,
		source_seq BIGINT NOT NULL DEFAULT 0,
		address TEXT,
		city TEXT,
		zip_code TEXT,
		land_value DOUBLE PRECISION,
		building_value DOUBLE PRECISION,
		total_value DOUBLE PRECISION,
		use_code TEXT,
		use_decode TEXT,
		land_code TEXT,
		billing_class TEXT,
		deed_date DATE,
		sale_date DATE,
		sale_price DOUBLE PRECISION,
		owner_name TEXT,
		owner_mailing TEXT,
		owner_type TEXT,
		acreage DOUBLE PRECISION,
		geom geometry(MultiPolygon, 4326),
		centroid geometry(Point, 4326),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_parcels_county_pin ON parcels(county, pin)`,
	`CREATE INDEX IF NOT EXISTS idx_parcels_county ON parcels(county)`,
	`CREATE INDEX IF NOT EXISTS idx_parcels_geom ON parcels USING GIST(geom)`,
	`CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id UUID PRIMARY KEY,
		county TEXT NOT NULL,
		status TEXT NOT NULL,
		cursor_seq BIGINT NOT NULL DEFAULT 0,
		records_processed INT NOT NULL DEFAULT 0,
		records_failed INT NOT NULL DEFAULT 0,
		records_with_geometry INT NOT NULL DEFAULT 0,
		pages_fetched INT NOT NULL DEFAULT 0,
		null_audit JSONB,
		median_land_val DOUBLE PRECISION,
		last_error TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_county_status ON ingestion_jobs(county, status)`,
	`CREATE TABLE IF NOT EXISTS history_snapshots (
		id BIGSERIAL PRIMARY KEY,
		parcel_id BIGINT NOT NULL REFERENCES parcels(id) ON DELETE CASCADE,
		snapshot_date DATE NOT NULL,
		land_value DOUBLE PRECISION,
		total_value DOUBLE PRECISION,
		use_code TEXT,
		source TEXT NOT NULL DEFAULT 'ingest'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_history_parcel_date ON history_snapshots(parcel_id, snapshot_date)`,
	`CREATE TABLE IF NOT EXISTS parcel_scores (
		parcel_id BIGINT PRIMARY KEY REFERENCES parcels(id) ON DELETE CASCADE,
		rezoning_probability DOUBLE PRECISION NOT NULL,
		investment_score DOUBLE PRECISION NOT NULL,
		yoy_change DOUBLE PRECISION,
		undervaluation_pct DOUBLE PRECISION NOT NULL,
		explanations JSONB NOT NULL,
		model_version TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_investment ON parcel_scores(investment_score DESC)`,
}

// EnsureSchema creates the persisted state layout on startup.
func (db *Database) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
