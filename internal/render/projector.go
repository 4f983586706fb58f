package render

import (
	"math"

	"transitcat/internal/geo"
)

const epsilon = 1e-6

func isZero(v float64) bool {
	return math.Abs(v) < epsilon
}

// sphereProjector maps coordinates onto the canvas so that the given points
// fit inside the padded area with the aspect ratio preserved.
type sphereProjector struct {
	padding float64
	minLon  float64
	maxLat  float64
	zoom    float64
}

func newSphereProjector(points []geo.Coordinates, width, height, padding float64) sphereProjector {
	p := sphereProjector{padding: padding}
	if len(points) == 0 {
		return p
	}

	minLon, maxLon := points[0].Lng, points[0].Lng
	minLat, maxLat := points[0].Lat, points[0].Lat
	for _, pt := range points[1:] {
		minLon = math.Min(minLon, pt.Lng)
		maxLon = math.Max(maxLon, pt.Lng)
		minLat = math.Min(minLat, pt.Lat)
		maxLat = math.Max(maxLat, pt.Lat)
	}
	p.minLon = minLon
	p.maxLat = maxLat

	var widthZoom, heightZoom float64
	hasWidth := !isZero(maxLon - minLon)
	hasHeight := !isZero(maxLat - minLat)
	if hasWidth {
		widthZoom = (width - 2*padding) / (maxLon - minLon)
	}
	if hasHeight {
		heightZoom = (height - 2*padding) / (maxLat - minLat)
	}

	switch {
	case hasWidth && hasHeight:
		p.zoom = math.Min(widthZoom, heightZoom)
	case hasWidth:
		p.zoom = widthZoom
	case hasHeight:
		p.zoom = heightZoom
	}
	return p
}

func (p sphereProjector) project(c geo.Coordinates) Point {
	return Point{
		X: (c.Lng-p.minLon)*p.zoom + p.padding,
		Y: (p.maxLat-c.Lat)*p.zoom + p.padding,
	}
}
