package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var squareCoords = [][][][2]float64{
	{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
}

func TestMultiPolygon_ScanFromGeoJSON(t *testing.T) {
	raw := []byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`)

	var mp MultiPolygon
	require.NoError(t, mp.Scan(raw))

	assert.Equal(t, 4326, mp.SRID)
	require.Len(t, mp.Coordinates, 1)
	assert.Equal(t, [2]float64{1, 1}, mp.Coordinates[0][0][2])
}

func TestMultiPolygon_ScanRejectsWrongType(t *testing.T) {
	var mp MultiPolygon

	err := mp.Scan([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.Error(t, err)

	err = mp.Scan("not bytes")
	assert.Error(t, err)
}

func TestMultiPolygon_ScanNil(t *testing.T) {
	var mp MultiPolygon
	require.NoError(t, mp.Scan(nil))
	assert.Empty(t, mp.Coordinates)
}

func TestMultiPolygon_ValueProducesGeoJSON(t *testing.T) {
	mp := MultiPolygon{Coordinates: squareCoords, SRID: 4326}

	v, err := mp.Value()
	require.NoError(t, err)

	s, ok := v.(string)
	require.True(t, ok)
	assert.Contains(t, s, `"type":"MultiPolygon"`)
}

func TestMultiPolygon_EmptyValueIsNull(t *testing.T) {
	var mp MultiPolygon

	v, err := mp.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMultiPolygon_JSONRoundTrip(t *testing.T) {
	mp := MultiPolygon{Coordinates: squareCoords, SRID: 4326}

	data, err := json.Marshal(mp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"MultiPolygon"`)

	var decoded MultiPolygon
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, mp.Coordinates, decoded.Coordinates)
	assert.Equal(t, 4326, decoded.SRID)
}

func TestPoint_ScanFromGeoJSON(t *testing.T) {
	var p Point
	require.NoError(t, p.Scan([]byte(`{"type":"Point","coordinates":[-78.64,35.78]}`)))

	assert.Equal(t, -78.64, p.X)
	assert.Equal(t, 35.78, p.Y)
}

func TestPoint_ScanRejectsWrongType(t *testing.T) {
	var p Point
	assert.Error(t, p.Scan([]byte(`{"type":"MultiPolygon","coordinates":[]}`)))
}

func TestPoint_JSONRoundTrip(t *testing.T) {
	p := Point{X: -78.64, Y: 35.78}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-78.64,35.78]}`, string(data))

	var decoded Point
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p, decoded)
}

func TestParcel_HasGeometry(t *testing.T) {
	p := Parcel{}
	assert.False(t, p.HasGeometry())

	p.Geom = &MultiPolygon{}
	assert.False(t, p.HasGeometry())

	p.Geom = &MultiPolygon{Coordinates: squareCoords}
	assert.True(t, p.HasGeometry())
}

func TestIngestionJob_Resumable(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{JobStatusPending, true},
		{JobStatusRunning, true},
		{JobStatusFailed, true},
		{JobStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			j := IngestionJob{Status: tt.status}
			assert.Equal(t, tt.want, j.Resumable())
			assert.Equal(t, !tt.want, j.Complete())
		})
	}
}
