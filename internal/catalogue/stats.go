package catalogue

import (
	"slices"

	"transitcat/internal/domain"
	"transitcat/internal/geo"
)

// Expand returns the sequence of stops a vehicle actually visits on a route.
// A cyclic route is visited as stored; any other route is driven to its last
// stop and back, so n stops expand to 2n-1.
//
// Statistics and graph construction both walk this sequence.
func (c *Catalogue) Expand(r domain.Route) []domain.StopID {
	if r.Cyclic || len(r.Stops) <= 1 {
		return slices.Clone(r.Stops)
	}

	n := len(r.Stops)
	seq := make([]domain.StopID, 0, 2*n-1)
	seq = append(seq, r.Stops...)
	for i := n - 2; i >= 0; i-- {
		seq = append(seq, r.Stops[i])
	}
	return seq
}

// Statistics computes the aggregate statistics of the named route. A route
// that resolved to no stops at all is reported as not found.
func (c *Catalogue) Statistics(name string) domain.RouteStats {
	r, ok := c.Route(name)
	if !ok {
		return domain.RouteStats{}
	}

	seq := c.Expand(r)
	if len(seq) == 0 {
		return domain.RouteStats{}
	}
	unique := make(map[domain.StopID]struct{}, len(seq))
	for _, id := range seq {
		unique[id] = struct{}{}
	}

	var roadLength int
	var geoLength float64
	for i := 1; i < len(seq); i++ {
		roadLength += c.Distance(seq[i-1], seq[i])
		geoLength += geo.Distance(c.stops[seq[i-1]].Coords, c.stops[seq[i]].Coords)
	}

	curvature := 1.0
	if geoLength > 0 {
		curvature = float64(roadLength) / geoLength
	}

	return domain.RouteStats{
		Found:       true,
		TotalStops:  len(seq),
		UniqueStops: len(unique),
		RouteLength: roadLength,
		Curvature:   curvature,
	}
}
