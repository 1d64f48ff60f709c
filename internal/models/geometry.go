package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MultiPolygon is the canonical internal polygon representation.
// Coordinates follow the GeoJSON nesting: [polygons][rings][points][x,y].
// SRID 4326 (WGS84) is used for lat/lng coordinates. Single polygons are
// stored as a MultiPolygon with one member so every parcel shares one shape.
type MultiPolygon struct {
	Coordinates [][][][2]float64
	SRID        int
}

// Scan implements sql.Scanner for reading multipolygon geometry from the
// database. PostGIS returns the geometry via ST_AsGeoJSON as []byte.
func (mp *MultiPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan MultiPolygon: expected []byte, got %T", value)
	}

	var geom struct {
		Type        string           `json:"type"`
		Coordinates [][][][2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(bytes, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon geometry: %w", err)
	}

	if geom.Type != "MultiPolygon" {
		return fmt.Errorf("expected MultiPolygon type, got %s", geom.Type)
	}

	mp.Coordinates = geom.Coordinates
	mp.SRID = 4326

	return nil
}

// Value implements driver.Valuer for writing multipolygon geometry to the
// database. Returns a GeoJSON string for use with ST_GeomFromGeoJSON.
func (mp MultiPolygon) Value() (driver.Value, error) {
	if len(mp.Coordinates) == 0 {
		return nil, nil
	}

	geom := map[string]interface{}{
		"type":        "MultiPolygon",
		"coordinates": mp.Coordinates,
	}

	geoJSON, err := json.Marshal(geom)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon to GeoJSON: %w", err)
	}

	return string(geoJSON), nil
}

// MarshalJSON implements json.Marshaler for API responses.
func (mp MultiPolygon) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string           `json:"type"`
		Coordinates [][][][2]float64 `json:"coordinates"`
	}{
		Type:        "MultiPolygon",
		Coordinates: mp.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (mp *MultiPolygon) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string           `json:"type"`
		Coordinates [][][][2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon: %w", err)
	}

	if geom.Type != "" && geom.Type != "MultiPolygon" {
		return fmt.Errorf("expected MultiPolygon type, got %s", geom.Type)
	}

	mp.Coordinates = geom.Coordinates
	mp.SRID = 4326

	return nil
}

// Point represents a single coordinate pair, used for parcel centroids and
// for sources that only publish a point location. Stored as (x, y) = (lng, lat).
type Point struct {
	X float64
	Y float64
}

// Scan implements sql.Scanner for reading a point from ST_AsGeoJSON output.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan Point: expected []byte, got %T", value)
	}

	var geom struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(bytes, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point geometry: %w", err)
	}

	if geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.X = geom.Coordinates[0]
	p.Y = geom.Coordinates[1]

	return nil
}

// Value implements driver.Valuer for writing a point to the database.
func (p Point) Value() (driver.Value, error) {
	geom := map[string]interface{}{
		"type":        "Point",
		"coordinates": [2]float64{p.X, p.Y},
	}

	geoJSON, err := json.Marshal(geom)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point to GeoJSON: %w", err)
	}

	return string(geoJSON), nil
}

// MarshalJSON implements json.Marshaler for API responses.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: [2]float64{p.X, p.Y},
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}

	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.X = geom.Coordinates[0]
	p.Y = geom.Coordinates[1]

	return nil
}
