// Package catalogue owns the stops, routes and measured road distances of a
// transit network, and derives per-route statistics from them.
//
// A Catalogue is populated by a single writer and then frozen. After Freeze
// every method is a pure read and the Catalogue may be shared freely.
package catalogue

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/tidwall/rtree"

	"transitcat/internal/domain"
	"transitcat/internal/geo"
)

var (
	ErrFrozen          = errors.New("catalogue is frozen")
	ErrUnknownStop     = errors.New("unknown stop")
	ErrMissingDistance = errors.New("missing road distance")
)

// Policy selects how incomplete input is treated.
type Policy struct {
	// StrictStops makes AddRoute and SetDistanceByName fail on unknown stop
	// names instead of skipping them.
	StrictStops bool
	// StrictDistances makes Freeze fail when two consecutive stops of a route
	// have no measured distance in either direction.
	StrictDistances bool
}

type stopPair struct {
	from, to domain.StopID
}

// Catalogue is an arena of stops and routes addressed by handles.
type Catalogue struct {
	policy Policy

	stops      []domain.Stop
	routes     []domain.Route
	stopIndex  map[string]domain.StopID
	routeIndex map[string]domain.RouteID
	distances  map[stopPair]int

	frozen     bool
	stopRoutes [][]string
	spatial    rtree.RTree
}

// New creates an empty catalogue.
func New(policy Policy) *Catalogue {
	return &Catalogue{
		policy:     policy,
		stopIndex:  make(map[string]domain.StopID),
		routeIndex: make(map[string]domain.RouteID),
		distances:  make(map[stopPair]int),
	}
}

// AddStop inserts a stop, or overwrites the coordinates of an existing stop
// with the same name while keeping its handle.
func (c *Catalogue) AddStop(name string, coords geo.Coordinates) (domain.StopID, error) {
	if c.frozen {
		return 0, ErrFrozen
	}

	if id, ok := c.stopIndex[name]; ok {
		c.stops[id].Coords = coords
		return id, nil
	}

	id := domain.StopID(len(c.stops))
	c.stops = append(c.stops, domain.Stop{ID: id, Name: name, Coords: coords})
	c.stopIndex[name] = id
	return id, nil
}

// AddRoute inserts or overwrites a route. Stop names that are not in the
// catalogue are dropped from the sequence unless the policy is strict.
func (c *Catalogue) AddRoute(name string, stopNames []string, cyclic bool) (domain.RouteID, error) {
	if c.frozen {
		return 0, ErrFrozen
	}

	seq := make([]domain.StopID, 0, len(stopNames))
	for _, sn := range stopNames {
		id, ok := c.stopIndex[sn]
		if !ok {
			if c.policy.StrictStops {
				return 0, fmt.Errorf("route %q: %w %q", name, ErrUnknownStop, sn)
			}
			continue
		}
		seq = append(seq, id)
	}

	if id, ok := c.routeIndex[name]; ok {
		c.routes[id].Stops = seq
		c.routes[id].Cyclic = cyclic
		return id, nil
	}

	id := domain.RouteID(len(c.routes))
	c.routes = append(c.routes, domain.Route{ID: id, Name: name, Stops: seq, Cyclic: cyclic})
	c.routeIndex[name] = id
	return id, nil
}

// Stop looks a stop up by name.
func (c *Catalogue) Stop(name string) (domain.Stop, bool) {
	id, ok := c.stopIndex[name]
	if !ok {
		return domain.Stop{}, false
	}
	return c.stops[id], true
}

// StopByID returns the stop behind a handle. The handle must come from this
// catalogue.
func (c *Catalogue) StopByID(id domain.StopID) domain.Stop {
	return c.stops[id]
}

// Route looks a route up by name.
func (c *Catalogue) Route(name string) (domain.Route, bool) {
	id, ok := c.routeIndex[name]
	if !ok {
		return domain.Route{}, false
	}
	return c.routes[id], true
}

// Stops returns all stops in handle order.
func (c *Catalogue) Stops() []domain.Stop {
	return slices.Clone(c.stops)
}

// Routes returns all routes in handle order.
func (c *Catalogue) Routes() []domain.Route {
	return slices.Clone(c.routes)
}

// RoutesByName returns all routes sorted by name.
func (c *Catalogue) RoutesByName() []domain.Route {
	routes := slices.Clone(c.routes)
	slices.SortFunc(routes, func(a, b domain.Route) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return routes
}

// StopCount returns the number of stops.
func (c *Catalogue) StopCount() int {
	return len(c.stops)
}

// RouteCount returns the number of routes.
func (c *Catalogue) RouteCount() int {
	return len(c.routes)
}

// Frozen reports whether Freeze has succeeded.
func (c *Catalogue) Frozen() bool {
	return c.frozen
}

// Freeze ends the loading phase and builds the read-side indexes.
func (c *Catalogue) Freeze() error {
	if c.frozen {
		return ErrFrozen
	}

	if c.policy.StrictDistances {
		if err := c.checkDistances(); err != nil {
			return err
		}
	}

	c.stopRoutes = c.buildStopRoutes()
	c.buildSpatialIndex()
	c.frozen = true
	return nil
}
