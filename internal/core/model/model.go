// Package model defines core domain types shared across the service.
package model

import "fmt"

// BBox is a lon/lat rectangle: X is longitude, Y is latitude.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching the bbox query parameter
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

type Polygon struct {
	GeoJSON string
}

// Cells are quadkeys, all of the same precision.
type Cells []string

// Point is an identified location within a layer.
type Point struct {
	Layer string  `json:"layer"`
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}
