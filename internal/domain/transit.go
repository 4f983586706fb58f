package domain

import (
	"fmt"

	"transitcat/internal/geo"
)

// StopID is a handle into the stop arena of a catalogue.
type StopID int

// RouteID is a handle into the route arena of a catalogue.
type RouteID int

// Stop is a named point where routes call.
type Stop struct {
	ID     StopID          `json:"-"`
	Name   string          `json:"name"`
	Coords geo.Coordinates `json:"coordinates"`
}

// Route is a named ordered sequence of stops. A cyclic route's sequence
// already ends with its first stop.
type Route struct {
	ID     RouteID  `json:"-"`
	Name   string   `json:"name"`
	Stops  []StopID `json:"-"`
	Cyclic bool     `json:"cyclic"`
}

// RoutingSettings holds the global routing parameters.
type RoutingSettings struct {
	BusWaitTime int     `json:"bus_wait_time" yaml:"bus_wait_time" validate:"gte=0"`
	BusVelocity float64 `json:"bus_velocity" yaml:"bus_velocity" validate:"gt=0"`
}

// DefaultRoutingSettings returns the settings used when none are supplied.
func DefaultRoutingSettings() RoutingSettings {
	return RoutingSettings{BusWaitTime: 6, BusVelocity: 40}
}

// RouteStats is the aggregate answer for a route query.
type RouteStats struct {
	Found       bool    `json:"-"`
	TotalStops  int     `json:"stop_count"`
	UniqueStops int     `json:"unique_stop_count"`
	RouteLength int     `json:"route_length"`
	Curvature   float64 `json:"curvature"`
}

// StopInfo is the answer for a stop query.
type StopInfo struct {
	Found bool     `json:"-"`
	Buses []string `json:"buses"`
}

// StepKind tags the variant carried by a Step.
type StepKind int

const (
	StepWait StepKind = iota
	StepBus
)

func (k StepKind) String() string {
	switch k {
	case StepWait:
		return "Wait"
	case StepBus:
		return "Bus"
	default:
		return "unknown"
	}
}

func (k StepKind) MarshalText() ([]byte, error) {
	switch k {
	case StepWait, StepBus:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown step kind %d", int(k))
}

func (k *StepKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Wait":
		*k = StepWait
	case "Bus":
		*k = StepBus
	default:
		return fmt.Errorf("unknown step kind %q", text)
	}
	return nil
}

// Step is one leg of an itinerary. Wait steps carry StopName, bus steps
// carry Bus and SpanCount. Time is in minutes for both.
type Step struct {
	Kind      StepKind `json:"type"`
	StopName  string   `json:"stop_name,omitempty"`
	Bus       string   `json:"bus,omitempty"`
	SpanCount int      `json:"span_count,omitempty"`
	Time      float64  `json:"time"`
}

// Itinerary is the answer for a route query between two stops.
type Itinerary struct {
	Found     bool    `json:"-"`
	TotalTime float64 `json:"total_time"`
	Items     []Step  `json:"items"`
}
