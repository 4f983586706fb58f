package graph

import (
	"container/heap"
	"math"
	"slices"
)

// RouteInfo is a shortest path: the edges to follow in order and their total
// weight.
type RouteInfo struct {
	Weight float64
	Edges  []EdgeID
}

// Router answers shortest path queries over a graph that is no longer
// modified. It holds no per-query state and is safe for concurrent use.
type Router struct {
	graph *DirectedWeightedGraph
}

func NewRouter(g *DirectedWeightedGraph) *Router {
	return &Router{graph: g}
}

// BuildRoute runs Dijkstra from one vertex to another. Among paths of equal
// weight the one discovered first through insertion-ordered edges wins, so
// repeated queries on identically built graphs return identical edge lists.
func (r *Router) BuildRoute(from, to VertexID) (RouteInfo, bool) {
	g := r.graph
	if !g.valid(from) || !g.valid(to) {
		return RouteInfo{}, false
	}
	if from == to {
		return RouteInfo{Edges: []EdgeID{}}, true
	}

	n := g.VertexCount()
	dist := make([]float64, n)
	prev := make([]EdgeID, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[from] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	heap.Push(pq, &pqItem{vertex: from, priority: 0, seq: seq})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		v := item.vertex
		if done[v] {
			continue
		}
		done[v] = true
		if v == to {
			break
		}

		for _, eid := range g.IncidentEdges(v) {
			e := g.Edge(eid)
			if done[e.To] {
				continue
			}
			if candidate := dist[v] + e.Weight; candidate < dist[e.To] {
				dist[e.To] = candidate
				prev[e.To] = eid
				seq++
				heap.Push(pq, &pqItem{vertex: e.To, priority: candidate, seq: seq})
			}
		}
	}

	if math.IsInf(dist[to], 1) {
		return RouteInfo{}, false
	}

	var edges []EdgeID
	for v := to; v != from; {
		eid := prev[v]
		edges = append(edges, eid)
		v = g.Edge(eid).From
	}
	slices.Reverse(edges)

	return RouteInfo{Weight: dist[to], Edges: edges}, true
}

type pqItem struct {
	vertex   VertexID
	priority float64
	seq      int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
