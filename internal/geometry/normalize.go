package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/parcelscope/api/internal/models"
)

// SquareFeetPerAcre is the exact survey constant used for area conversion.
const SquareFeetPerAcre = 43560.0

// ErrUnsupportedGeometry is returned for shape types that cannot represent a
// parcel boundary (lines, geometry collections, and so on). Callers count
// the record as failed rather than dropping it silently.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Normalized is the outcome of normalizing one source geometry.
// Geom is nil when the source only published a point; the point survives as
// the centroid so the parcel can still be placed on a map.
type Normalized struct {
	Geom      *models.MultiPolygon
	Centroid  models.Point
	AreaAcres float64
}

// Normalize converts a raw source geometry into the internal representation.
// Accepted encodings: GeoJSON Polygon, GeoJSON MultiPolygon, Esri ring
// arrays, and a bare GeoJSON Point. A nil or empty geometry returns
// (nil, nil) because absent geometry is allowed, only malformed geometry is
// not.
func Normalize(raw json.RawMessage) (*Normalized, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var envelope struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
		Rings       [][][2]float64  `json:"rings"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}

	// Esri JSON carries rings with no type tag.
	if envelope.Type == "" && len(envelope.Rings) > 0 {
		return fromPolygons([][][][2]float64{envelope.Rings})
	}

	switch envelope.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(envelope.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("failed to parse polygon coordinates: %w", err)
		}
		return fromPolygons([][][][2]float64{rings})

	case "MultiPolygon":
		var polygons [][][][2]float64
		if err := json.Unmarshal(envelope.Coordinates, &polygons); err != nil {
			return nil, fmt.Errorf("failed to parse multipolygon coordinates: %w", err)
		}
		return fromPolygons(polygons)

	case "Point":
		var coords [2]float64
		if err := json.Unmarshal(envelope.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to parse point coordinates: %w", err)
		}
		return &Normalized{
			Centroid: models.Point{X: coords[0], Y: coords[1]},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, envelope.Type)
	}
}

// fromPolygons builds the normalized result for polygon input: the stored
// multipolygon, an area-weighted centroid, and the planar area in acres.
func fromPolygons(polygons [][][][2]float64) (*Normalized, error) {
	if len(polygons) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedGeometry)
	}

	var totalArea, cxSum, cySum float64
	for _, rings := range polygons {
		if len(rings) == 0 {
			continue
		}
		// The first ring is the boundary; the rest are holes.
		outer := math.Abs(signedArea(rings[0]))
		area := outer
		for _, hole := range rings[1:] {
			area -= math.Abs(signedArea(hole))
		}
		if area < 0 {
			area = 0
		}
		cx, cy := ringCentroid(rings[0])
		totalArea += area
		cxSum += cx * area
		cySum += cy * area
	}

	var centroid models.Point
	if totalArea > 0 {
		centroid = models.Point{X: cxSum / totalArea, Y: cySum / totalArea}
	} else {
		// Degenerate geometry (zero area): fall back to a vertex average so
		// the parcel still gets a stable map location.
		centroid = vertexAverage(polygons)
	}

	return &Normalized{
		Geom:      &models.MultiPolygon{Coordinates: polygons, SRID: 4326},
		Centroid:  centroid,
		AreaAcres: totalArea / SquareFeetPerAcre,
	}, nil
}

// signedArea computes the shoelace area of one ring in the geometry's native
// linear units. Positive for counter-clockwise winding.
func signedArea(ring [][2]float64) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum / 2
}

// ringCentroid computes the area-weighted centroid of a single ring.
// Falls back to the vertex mean when the ring is degenerate.
func ringCentroid(ring [][2]float64) (float64, float64) {
	a := signedArea(ring)
	if a == 0 {
		var sx, sy float64
		if len(ring) == 0 {
			return 0, 0
		}
		for _, pt := range ring {
			sx += pt[0]
			sy += pt[1]
		}
		n := float64(len(ring))
		return sx / n, sy / n
	}

	var cx, cy float64
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		cross := ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
		cx += (ring[i][0] + ring[j][0]) * cross
		cy += (ring[i][1] + ring[j][1]) * cross
	}
	return cx / (6 * a), cy / (6 * a)
}

// vertexAverage averages every vertex of every ring.
func vertexAverage(polygons [][][][2]float64) models.Point {
	var sx, sy float64
	var n int
	for _, rings := range polygons {
		for _, ring := range rings {
			for _, pt := range ring {
				sx += pt[0]
				sy += pt[1]
				n++
			}
		}
	}
	if n == 0 {
		return models.Point{}
	}
	return models.Point{X: sx / float64(n), Y: sy / float64(n)}
}
