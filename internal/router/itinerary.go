package router

import "transitcat/internal/domain"

// BuildRoute finds the fastest itinerary between two named stops. Unknown
// stops and unreachable destinations both yield an itinerary with Found unset.
func (r *Router) BuildRoute(from, to string) domain.Itinerary {
	src, ok := r.cat.Stop(from)
	if !ok {
		return domain.Itinerary{}
	}
	dst, ok := r.cat.Stop(to)
	if !ok {
		return domain.Itinerary{}
	}

	path, ok := r.paths.BuildRoute(waitingVertex(src.ID), waitingVertex(dst.ID))
	if !ok {
		return domain.Itinerary{}
	}

	it := domain.Itinerary{
		Found: true,
		Items: make([]domain.Step, 0, len(path.Edges)),
	}
	for _, eid := range path.Edges {
		step := r.steps[eid]
		it.TotalTime += step.Time
		it.Items = append(it.Items, step)
	}
	return it
}
