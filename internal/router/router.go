// Package router turns a frozen catalogue into a time-weighted graph and
// answers fastest-itinerary queries over it.
//
// Every stop owns two vertices: waiting (2i) and ready (2i+1). Boarding costs
// the wait edge waiting->ready; a bus ride goes from the ready vertex of the
// boarding stop to the waiting vertex of the alighting stop, so every transfer
// pays the wait again.
package router

import (
	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/graph"
)

// Router is immutable once built.
type Router struct {
	cat      *catalogue.Catalogue
	settings domain.RoutingSettings
	graph    *graph.DirectedWeightedGraph
	paths    *graph.Router
	steps    []domain.Step
}

func waitingVertex(id domain.StopID) graph.VertexID { return graph.VertexID(2 * id) }

func readyVertex(id domain.StopID) graph.VertexID { return graph.VertexID(2*id + 1) }

// New builds the routing graph from cat. The catalogue must not change
// afterwards.
func New(cat *catalogue.Catalogue, settings domain.RoutingSettings) *Router {
	r := &Router{
		cat:      cat,
		settings: settings,
		graph:    graph.NewDirectedWeightedGraph(2 * cat.StopCount()),
	}

	for _, s := range cat.Stops() {
		r.addEdge(waitingVertex(s.ID), readyVertex(s.ID), domain.Step{
			Kind:     domain.StepWait,
			StopName: s.Name,
			Time:     float64(settings.BusWaitTime),
		})
	}

	for _, route := range cat.RoutesByName() {
		r.addRouteEdges(route)
	}

	r.paths = graph.NewRouter(r.graph)
	return r
}

func (r *Router) addRouteEdges(route domain.Route) {
	seq := r.cat.Expand(route)
	for i := 0; i < len(seq); i++ {
		var meters int
		for j := i + 1; j < len(seq); j++ {
			if route.Cyclic && seq[j] == seq[i] {
				break
			}
			meters += r.cat.Distance(seq[j-1], seq[j])
			r.addEdge(readyVertex(seq[i]), waitingVertex(seq[j]), domain.Step{
				Kind:      domain.StepBus,
				Bus:       route.Name,
				SpanCount: j - i,
				Time:      r.travelMinutes(meters),
			})
		}
	}
}

func (r *Router) travelMinutes(meters int) float64 {
	return float64(meters) / 1000.0 / r.settings.BusVelocity * 60.0
}

func (r *Router) addEdge(from, to graph.VertexID, step domain.Step) {
	r.graph.AddEdge(graph.Edge{From: from, To: to, Weight: step.Time})
	r.steps = append(r.steps, step)
}

// Graph exposes the built graph for inspection.
func (r *Router) Graph() *graph.DirectedWeightedGraph {
	return r.graph
}

// Step returns the meaning of an edge.
func (r *Router) Step(id graph.EdgeID) domain.Step {
	return r.steps[id]
}

// Settings returns the settings the graph was built with.
func (r *Router) Settings() domain.RoutingSettings {
	return r.settings
}
