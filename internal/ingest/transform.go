package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcelscope/api/internal/geometry"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/source"
)

// Record-level validation errors. Records failing these are counted and
// skipped; they never abort the page.
var (
	ErrMissingPIN = errors.New("record is missing its parcel identifier")
)

// corporateMarkers are owner-name tokens that indicate a corporate owner.
var corporateMarkers = map[string]bool{
	"LLC":         true,
	"INC":         true,
	"CORP":        true,
	"CORPORATION": true,
	"COMPANY":     true,
	"TRUST":       true,
	"LP":          true,
	"LLP":         true,
	"PARTNERS":    true,
	"PARTNERSHIP": true,
	"PROPERTIES":  true,
	"HOLDINGS":    true,
	"ASSOCIATES":  true,
	"DEVELOPMENT": true,
}

// buildParcel maps one raw source feature onto the canonical parcel schema
// using the county's field map, normalizing geometry along the way.
func buildParcel(fm source.FieldMap, county string, f source.Feature) (*models.Parcel, error) {
	pin := stringAttr(f.Attributes, fm.PIN)
	if pin == nil || *pin == "" {
		return nil, ErrMissingPIN
	}

	normalized, err := geometry.Normalize(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("parcel %s: %w", *pin, err)
	}

	p := &models.Parcel{
		County:        county,
		PIN:           *pin,
		SourceSeq:     f.Sequence,
		Address:       stringAttr(f.Attributes, fm.Address),
		City:          stringAttr(f.Attributes, fm.City),
		ZipCode:       stringAttr(f.Attributes, fm.ZipCode),
		LandValue:     floatAttr(f.Attributes, fm.LandValue),
		BuildingValue: floatAttr(f.Attributes, fm.BuildingValue),
		TotalValue:    floatAttr(f.Attributes, fm.TotalValue),
		UseCode:       stringAttr(f.Attributes, fm.UseCode),
		UseDecode:     stringAttr(f.Attributes, fm.UseDecode),
		LandCode:      stringAttr(f.Attributes, fm.LandCode),
		BillingClass:  stringAttr(f.Attributes, fm.BillingClass),
		DeedDate:      dateAttr(f.Attributes, fm.DeedDate),
		SaleDate:      dateAttr(f.Attributes, fm.SaleDate),
		SalePrice:     floatAttr(f.Attributes, fm.SalePrice),
		OwnerName:     stringAttr(f.Attributes, fm.OwnerName),
		OwnerMailing:  stringAttr(f.Attributes, fm.OwnerMailing),
		Acreage:       floatAttr(f.Attributes, fm.Acreage),
	}

	if normalized != nil {
		p.Geom = normalized.Geom
		centroid := normalized.Centroid
		p.Centroid = &centroid
		// Prefer the assessor's published acreage; fall back to the
		// computed planar area when the source has none.
		if p.Acreage == nil && normalized.AreaAcres > 0 {
			acres := normalized.AreaAcres
			p.Acreage = &acres
		}
	}

	if p.OwnerName != nil {
		ownerType := classifyOwner(*p.OwnerName)
		p.OwnerType = &ownerType
	}

	return p, nil
}

// classifyOwner decides corporate vs individual from the owner name tokens.
func classifyOwner(ownerName string) string {
	upper := strings.ToUpper(ownerName)
	upper = strings.NewReplacer(",", " ", ".", " ", ";", " ").Replace(upper)
	for _, token := range strings.Fields(upper) {
		if corporateMarkers[token] {
			return models.OwnerTypeCorporate
		}
	}
	return models.OwnerTypeIndividual
}

// auditNulls tallies missing values per canonical field. The accumulated
// audit is persisted on the job ledger for data-quality review.
func auditNulls(p *models.Parcel, audit map[string]int) {
	fields := map[string]bool{
		"address":        p.Address == nil,
		"city":           p.City == nil,
		"zip_code":       p.ZipCode == nil,
		"land_value":     p.LandValue == nil,
		"building_value": p.BuildingValue == nil,
		"total_value":    p.TotalValue == nil,
		"use_code":       p.UseCode == nil,
		"use_decode":     p.UseDecode == nil,
		"land_code":      p.LandCode == nil,
		"billing_class":  p.BillingClass == nil,
		"deed_date":      p.DeedDate == nil,
		"sale_date":      p.SaleDate == nil,
		"sale_price":     p.SalePrice == nil,
		"owner_name":     p.OwnerName == nil,
		"owner_mailing":  p.OwnerMailing == nil,
		"acreage":        p.Acreage == nil,
		"geometry":       !p.HasGeometry(),
	}
	for field, isNull := range fields {
		if isNull {
			audit[field]++
		}
	}
}

// stringAttr reads an optional string attribute; an unmapped or empty field
// yields nil, never "".
func stringAttr(attrs map[string]interface{}, field string) *string {
	if field == "" {
		return nil
	}
	v, ok := attrs[field]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		// Numeric codes (ZIP, use code) arrive as numbers on some layers.
		s = fmt.Sprintf("%.0f", t)
	default:
		s = strings.TrimSpace(fmt.Sprintf("%v", t))
	}
	if s == "" {
		return nil
	}
	return &s
}

// floatAttr reads an optional numeric attribute.
func floatAttr(attrs map[string]interface{}, field string) *float64 {
	if field == "" {
		return nil
	}
	v, ok := attrs[field]
	if !ok || v == nil {
		return nil
	}
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// dateAttr reads an optional date attribute. Esri layers publish dates as
// epoch milliseconds; statewide layers sometimes use ISO strings.
func dateAttr(attrs map[string]interface{}, field string) *time.Time {
	if field == "" {
		return nil
	}
	v, ok := attrs[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		d := time.UnixMilli(int64(t)).UTC()
		return &d
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if d, err := time.Parse(layout, t); err == nil {
				return &d
			}
		}
	}
	return nil
}
