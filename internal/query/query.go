// Package query answers stat requests against a network and shapes the
// answers into their wire form.
package query

import (
	"transitcat/internal/domain"
)

const (
	TypeStop  = "Stop"
	TypeBus   = "Bus"
	TypeMap   = "Map"
	TypeRoute = "Route"

	msgNotFound    = "not found"
	msgUnknownType = "unknown request type"
)

// Request is a single stat request. Name is used by Stop and Bus requests,
// From and To by Route requests.
type Request struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Network is the read side of a finalized network.
type Network interface {
	StopInfo(name string) domain.StopInfo
	BusInfo(name string) domain.RouteStats
	Route(from, to string) domain.Itinerary
	RenderMap() string
}

type ErrorResponse struct {
	RequestID    int    `json:"request_id"`
	ErrorMessage string `json:"error_message"`
}

type StopResponse struct {
	RequestID int      `json:"request_id"`
	Buses     []string `json:"buses"`
}

type BusResponse struct {
	RequestID       int     `json:"request_id"`
	Curvature       float64 `json:"curvature"`
	RouteLength     int     `json:"route_length"`
	StopCount       int     `json:"stop_count"`
	UniqueStopCount int     `json:"unique_stop_count"`
}

type MapResponse struct {
	RequestID int    `json:"request_id"`
	Map       string `json:"map"`
}

type RouteResponse struct {
	RequestID int           `json:"request_id"`
	TotalTime float64       `json:"total_time"`
	Items     []domain.Step `json:"items"`
}

// NewStopResponse, NewBusResponse and NewRouteResponse convert domain answers,
// falling back to the not-found error.
func NewStopResponse(id int, info domain.StopInfo) any {
	if !info.Found {
		return ErrorResponse{RequestID: id, ErrorMessage: msgNotFound}
	}
	return StopResponse{RequestID: id, Buses: info.Buses}
}

func NewBusResponse(id int, stats domain.RouteStats) any {
	if !stats.Found {
		return ErrorResponse{RequestID: id, ErrorMessage: msgNotFound}
	}
	return BusResponse{
		RequestID:       id,
		Curvature:       stats.Curvature,
		RouteLength:     stats.RouteLength,
		StopCount:       stats.TotalStops,
		UniqueStopCount: stats.UniqueStops,
	}
}

func NewRouteResponse(id int, it domain.Itinerary) any {
	if !it.Found {
		return ErrorResponse{RequestID: id, ErrorMessage: msgNotFound}
	}
	items := it.Items
	if items == nil {
		items = []domain.Step{}
	}
	return RouteResponse{RequestID: id, TotalTime: it.TotalTime, Items: items}
}

// Processor dispatches requests by type.
type Processor struct {
	network Network
}

func NewProcessor(n Network) *Processor {
	return &Processor{network: n}
}

func (p *Processor) Handle(req Request) any {
	switch req.Type {
	case TypeStop:
		return NewStopResponse(req.ID, p.network.StopInfo(req.Name))
	case TypeBus:
		return NewBusResponse(req.ID, p.network.BusInfo(req.Name))
	case TypeMap:
		return MapResponse{RequestID: req.ID, Map: p.network.RenderMap()}
	case TypeRoute:
		return NewRouteResponse(req.ID, p.network.Route(req.From, req.To))
	default:
		return ErrorResponse{RequestID: req.ID, ErrorMessage: msgUnknownType}
	}
}

// HandleAll answers requests in order.
func (p *Processor) HandleAll(reqs []Request) []any {
	out := make([]any, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, p.Handle(r))
	}
	return out
}
