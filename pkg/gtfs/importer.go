// Package gtfs imports a static GTFS feed as a transit dataset.
package gtfs

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	gogtfs "github.com/OneBusAway/go-gtfs"

	"transitcat/internal/domain"
	"transitcat/internal/geo"
)

// ImportOptions controls how a feed is turned into a dataset.
type ImportOptions struct {
	// ShapeDistUnit is the unit of shape_dist_traveled: "m" or "km". Any other
	// value ignores the column and uses great-circle distances.
	ShapeDistUnit string
}

func (o ImportOptions) shapeDistFactor() float64 {
	switch o.ShapeDistUnit {
	case "m":
		return 1
	case "km":
		return 1000
	default:
		return 0
	}
}

// Import parses a GTFS zip archive.
func Import(data []byte, opts ImportOptions) (*domain.Dataset, error) {
	static, err := gogtfs.ParseStatic(data, gogtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse gtfs: %w", err)
	}
	return FromStatic(static, opts), nil
}

// FromStatic converts parsed GTFS data. Every located stop becomes a stop;
// every route becomes a bus driven along its longest trip. Consecutive stops
// on that trip get a road distance from shape_dist_traveled when usable,
// otherwise the rounded great-circle distance.
func FromStatic(static *gogtfs.Static, opts ImportOptions) *domain.Dataset {
	ds := &domain.Dataset{Stops: []domain.StopRecord{}}

	stopNames := uniqueStopNames(static.Stops)
	stopIndex := make(map[string]int, len(stopNames))
	for _, s := range static.Stops {
		name, ok := stopNames[s.Id]
		if !ok {
			continue
		}
		stopIndex[s.Id] = len(ds.Stops)
		ds.Stops = append(ds.Stops, domain.StopRecord{
			Name:      name,
			Latitude:  *s.Latitude,
			Longitude: *s.Longitude,
		})
	}

	trips := representativeTrips(static.Trips)
	routeNames := uniqueRouteNames(trips)
	factor := opts.shapeDistFactor()

	for routeID, trip := range trips {
		stopTimes := slices.Clone(trip.StopTimes)
		slices.SortFunc(stopTimes, func(a, b gogtfs.ScheduledStopTime) int {
			return cmp.Compare(a.StopSequence, b.StopSequence)
		})

		var names []string
		var prev *gogtfs.ScheduledStopTime
		for i := range stopTimes {
			st := &stopTimes[i]
			if st.Stop == nil {
				continue
			}
			idx, ok := stopIndex[st.Stop.Id]
			if !ok {
				continue
			}
			names = append(names, ds.Stops[idx].Name)

			if prev != nil && prev.Stop.Id != st.Stop.Id {
				from := &ds.Stops[stopIndex[prev.Stop.Id]]
				if _, seen := from.RoadDistances[ds.Stops[idx].Name]; !seen {
					if from.RoadDistances == nil {
						from.RoadDistances = make(map[string]int)
					}
					from.RoadDistances[ds.Stops[idx].Name] = legDistance(prev, st, factor)
				}
			}
			prev = st
		}

		ds.Buses = append(ds.Buses, domain.BusRecord{
			Name:        routeNames[routeID],
			Stops:       names,
			IsRoundtrip: len(names) > 1 && names[0] == names[len(names)-1],
		})
	}

	slices.SortFunc(ds.Buses, func(a, b domain.BusRecord) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return ds
}

func legDistance(from, to *gogtfs.ScheduledStopTime, factor float64) int {
	if factor > 0 && from.ShapeDistanceTraveled != nil && to.ShapeDistanceTraveled != nil {
		if delta := *to.ShapeDistanceTraveled - *from.ShapeDistanceTraveled; delta > 0 {
			return int(math.Round(delta * factor))
		}
	}

	a := geo.Coordinates{Lat: *from.Stop.Latitude, Lng: *from.Stop.Longitude}
	b := geo.Coordinates{Lat: *to.Stop.Latitude, Lng: *to.Stop.Longitude}
	return int(math.Round(geo.Distance(a, b)))
}

// uniqueStopNames maps stop ids to display names, suffixing the id onto names
// shared by several stops. Stops without coordinates are left out.
func uniqueStopNames(stops []gogtfs.Stop) map[string]string {
	counts := make(map[string]int)
	for _, s := range stops {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		counts[stopLabel(s)]++
	}

	names := make(map[string]string, len(stops))
	for _, s := range stops {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		label := stopLabel(s)
		if counts[label] > 1 {
			label = fmt.Sprintf("%s [%s]", label, s.Id)
		}
		names[s.Id] = label
	}
	return names
}

func stopLabel(s gogtfs.Stop) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Id
}

// representativeTrips picks, per route id, the trip with the most stop times.
// Ties go to the smallest trip id.
func representativeTrips(trips []gogtfs.ScheduledTrip) map[string]*gogtfs.ScheduledTrip {
	best := make(map[string]*gogtfs.ScheduledTrip)
	for i := range trips {
		t := &trips[i]
		if t.Route == nil {
			continue
		}
		cur, ok := best[t.Route.Id]
		if !ok ||
			len(t.StopTimes) > len(cur.StopTimes) ||
			(len(t.StopTimes) == len(cur.StopTimes) && t.ID < cur.ID) {
			best[t.Route.Id] = t
		}
	}
	return best
}

func uniqueRouteNames(trips map[string]*gogtfs.ScheduledTrip) map[string]string {
	label := func(r *gogtfs.Route) string {
		if r.ShortName != "" {
			return r.ShortName
		}
		return r.Id
	}

	counts := make(map[string]int)
	for _, t := range trips {
		counts[label(t.Route)]++
	}

	names := make(map[string]string, len(trips))
	for id, t := range trips {
		name := label(t.Route)
		if counts[name] > 1 {
			name = fmt.Sprintf("%s [%s]", name, id)
		}
		names[id] = name
	}
	return names
}
