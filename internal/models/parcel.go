package models

import (
	"time"
)

// Owner type values derived during ingestion from the owner name.
const (
	OwnerTypeIndividual = "individual"
	OwnerTypeCorporate  = "corporate"
)

// Parcel is the canonical cadastral record. One row per (county, pin).
// All nullable fields use pointers to distinguish between zero values and NULL.
// Geometry is nullable: sources that only publish a point location leave Geom
// nil and store the point as the centroid.
type Parcel struct {
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Address       *string       `json:"address,omitempty"`
	City          *string       `json:"city,omitempty"`
	ZipCode       *string       `json:"zipCode,omitempty"`
	LandValue     *float64      `json:"landValue,omitempty"`
	BuildingValue *float64      `json:"buildingValue,omitempty"`
	TotalValue    *float64      `json:"totalValue,omitempty"`
	UseCode       *string       `json:"useCode,omitempty"`
	UseDecode     *string       `json:"useDecode,omitempty"`
	LandCode      *string       `json:"landCode,omitempty"`
	BillingClass  *string       `json:"billingClass,omitempty"`
	DeedDate      *time.Time    `json:"deedDate,omitempty"`
	SaleDate      *time.Time    `json:"saleDate,omitempty"`
	SalePrice     *float64      `json:"salePrice,omitempty"`
	OwnerName     *string       `json:"ownerName,omitempty"`
	OwnerMailing  *string       `json:"ownerMailing,omitempty"`
	OwnerType     *string       `json:"ownerType,omitempty"`
	Acreage       *float64      `json:"acreage,omitempty"`
	Geom          *MultiPolygon `json:"geometry,omitempty"`
	Centroid      *Point        `json:"centroid,omitempty"`
	County        string        `json:"county"`
	PIN           string        `json:"pin"`
	ID            int64         `json:"id"`
	SourceSeq     int64         `json:"sourceSeq"`
}

// HasGeometry reports whether the parcel carries polygon geometry.
// Parcels ingested from point-only sources return false here even though
// they still have a centroid.
func (p *Parcel) HasGeometry() bool {
	return p.Geom != nil && len(p.Geom.Coordinates) > 0
}
