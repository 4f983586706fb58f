package catalogue

import (
	"cmp"
	"slices"

	"github.com/tidwall/rtree"

	"transitcat/internal/domain"
)

// BusesForStop returns the sorted names of the routes calling at a stop.
func (c *Catalogue) BusesForStop(name string) domain.StopInfo {
	id, ok := c.stopIndex[name]
	if !ok {
		return domain.StopInfo{}
	}

	var buses []string
	if c.frozen {
		buses = c.stopRoutes[id]
	} else {
		buses = c.buildStopRoutes()[id]
	}

	if buses == nil {
		buses = []string{}
	}
	return domain.StopInfo{Found: true, Buses: slices.Clone(buses)}
}

// IsServed reports whether at least one route calls at the stop.
func (c *Catalogue) IsServed(id domain.StopID) bool {
	if c.frozen {
		return len(c.stopRoutes[id]) > 0
	}
	return len(c.buildStopRoutes()[id]) > 0
}

func (c *Catalogue) buildStopRoutes() [][]string {
	index := make([][]string, len(c.stops))
	for _, r := range c.RoutesByName() {
		for _, id := range r.Stops {
			if !slices.Contains(index[id], r.Name) {
				index[id] = append(index[id], r.Name)
			}
		}
	}
	return index
}

// Points are stored as [lon, lat] so the first axis is x.
func (c *Catalogue) buildSpatialIndex() {
	c.spatial = rtree.RTree{}
	for _, s := range c.stops {
		pt := [2]float64{s.Coords.Lng, s.Coords.Lat}
		c.spatial.Insert(pt, pt, s.ID)
	}
}

// StopsInBounds returns the stops inside the box sorted by name. It uses the
// spatial index once the catalogue is frozen.
func (c *Catalogue) StopsInBounds(bb domain.BoundingBox) []domain.Stop {
	var result []domain.Stop

	if c.frozen {
		lo, hi := bb.Rect()
		c.spatial.Search(lo, hi, func(_, _ [2]float64, data interface{}) bool {
			result = append(result, c.stops[data.(domain.StopID)])
			return true
		})
	} else {
		for _, s := range c.stops {
			if bb.Contains(s.Coords) {
				result = append(result, s)
			}
		}
	}

	slices.SortFunc(result, func(a, b domain.Stop) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return result
}
