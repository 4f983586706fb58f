package domain

import "transitcat/internal/geo"

// BoundingBox is a lat/lng rectangle used for viewport stop lookups.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// WorldBounds covers every valid coordinate.
var WorldBounds = BoundingBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}

// Contains is inclusive on every edge.
func (bb BoundingBox) Contains(c geo.Coordinates) bool {
	return c.Lat >= bb.MinLat && c.Lat <= bb.MaxLat &&
		c.Lng >= bb.MinLon && c.Lng <= bb.MaxLon
}

func (bb BoundingBox) Valid() bool {
	return bb.MinLat <= bb.MaxLat && bb.MinLon <= bb.MaxLon
}

// Rect returns the box as lng/lat corner pairs, the axis order of the
// spatial index.
func (bb BoundingBox) Rect() (lo, hi [2]float64) {
	return [2]float64{bb.MinLon, bb.MinLat}, [2]float64{bb.MaxLon, bb.MaxLat}
}
