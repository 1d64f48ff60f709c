package models

import (
	"time"
)

// Snapshot provenance values.
const (
	SnapshotSourceIngest   = "ingest"
	SnapshotSourceBackfill = "backfill"
)

// HistorySnapshot is a dated, append-only record of a parcel's mutable
// attributes, written once per successful upsert per ingestion date.
// (ParcelID, SnapshotDate) is unique; a duplicate write is a no-op.
type HistorySnapshot struct {
	SnapshotDate time.Time `json:"snapshotDate"`
	LandValue    *float64  `json:"landValue,omitempty"`
	TotalValue   *float64  `json:"totalValue,omitempty"`
	UseCode      *string   `json:"useCode,omitempty"`
	Source       string    `json:"source"`
	ParcelID     int64     `json:"parcelId"`
	ID           int64     `json:"id"`
}
