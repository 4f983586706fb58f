// Package graph provides a directed graph with nonnegative edge weights and a
// single-source shortest path router over it.
package graph

import "fmt"

type VertexID int

type EdgeID int

// Edge is a directed weighted connection between two vertices.
type Edge struct {
	From   VertexID
	To     VertexID
	Weight float64
}

// DirectedWeightedGraph stores edges in insertion order; an edge's id is its
// insertion index.
type DirectedWeightedGraph struct {
	edges     []Edge
	incidence [][]EdgeID
}

func NewDirectedWeightedGraph(vertexCount int) *DirectedWeightedGraph {
	return &DirectedWeightedGraph{
		incidence: make([][]EdgeID, vertexCount),
	}
}

// AddEdge appends an edge and returns its id. It panics on an out-of-range
// vertex or a negative weight.
func (g *DirectedWeightedGraph) AddEdge(e Edge) EdgeID {
	if !g.valid(e.From) || !g.valid(e.To) {
		panic(fmt.Sprintf("graph: edge %d->%d outside %d vertices", e.From, e.To, len(g.incidence)))
	}
	if e.Weight < 0 {
		panic(fmt.Sprintf("graph: negative weight %v on edge %d->%d", e.Weight, e.From, e.To))
	}

	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, e)
	g.incidence[e.From] = append(g.incidence[e.From], id)
	return id
}

func (g *DirectedWeightedGraph) VertexCount() int {
	return len(g.incidence)
}

func (g *DirectedWeightedGraph) EdgeCount() int {
	return len(g.edges)
}

func (g *DirectedWeightedGraph) Edge(id EdgeID) Edge {
	return g.edges[id]
}

// IncidentEdges returns the ids of edges leaving v, in insertion order.
func (g *DirectedWeightedGraph) IncidentEdges(v VertexID) []EdgeID {
	return g.incidence[v]
}

func (g *DirectedWeightedGraph) valid(v VertexID) bool {
	return v >= 0 && int(v) < len(g.incidence)
}
