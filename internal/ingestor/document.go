package ingestor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/go-playground/validator/v10"

	"transitcat/internal/domain"
	"transitcat/internal/query"
	"transitcat/internal/render"
	"transitcat/internal/transit"
)

var ErrInvalidRecord = errors.New("invalid base request")

const (
	recordStop = "Stop"
	recordBus  = "Bus"
)

// BaseRequest is one entry of base_requests. Stop entries use the coordinate
// and distance fields, Bus entries use Stops and IsRoundtrip.
type BaseRequest struct {
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	RoadDistances map[string]int `json:"road_distances"`
	Stops         []string       `json:"stops"`
	IsRoundtrip   bool           `json:"is_roundtrip"`
}

// Document is the complete input of a batch run.
type Document struct {
	BaseRequests    []BaseRequest           `json:"base_requests"`
	RoutingSettings *domain.RoutingSettings `json:"routing_settings"`
	RenderSettings  *render.Settings        `json:"render_settings"`
	StatRequests    []query.Request         `json:"stat_requests"`

	// settings objects as written, so Options can apply only the keys present
	routingRaw json.RawMessage
	renderRaw  json.RawMessage
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	aux := struct {
		*plain
		RoutingSettings json.RawMessage `json:"routing_settings"`
		RenderSettings  json.RawMessage `json:"render_settings"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.RoutingSettings, d.routingRaw = nil, nil
	if present(aux.RoutingSettings) {
		var rs domain.RoutingSettings
		if err := json.Unmarshal(aux.RoutingSettings, &rs); err != nil {
			return fmt.Errorf("routing_settings: %w", err)
		}
		d.RoutingSettings, d.routingRaw = &rs, aux.RoutingSettings
	}

	d.RenderSettings, d.renderRaw = nil, nil
	if present(aux.RenderSettings) {
		var rs render.Settings
		if err := json.Unmarshal(aux.RenderSettings, &rs); err != nil {
			return fmt.Errorf("render_settings: %w", err)
		}
		d.RenderSettings, d.renderRaw = &rs, aux.RenderSettings
	}
	return nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Dataset splits the base requests into validated stop and bus records.
func (d *Document) Dataset() (*domain.Dataset, error) {
	validate := validator.New()
	ds := &domain.Dataset{}

	for i, br := range d.BaseRequests {
		switch br.Type {
		case recordStop:
			rec := domain.StopRecord{
				Name:          br.Name,
				Latitude:      br.Latitude,
				Longitude:     br.Longitude,
				RoadDistances: br.RoadDistances,
			}
			if err := validate.Struct(rec); err != nil {
				return nil, fmt.Errorf("%w #%d (stop %q): %v", ErrInvalidRecord, i, br.Name, err)
			}
			ds.Stops = append(ds.Stops, rec)
		case recordBus:
			rec := domain.BusRecord{
				Name:        br.Name,
				Stops:       br.Stops,
				IsRoundtrip: br.IsRoundtrip,
			}
			if err := validate.Struct(rec); err != nil {
				return nil, fmt.Errorf("%w #%d (bus %q): %v", ErrInvalidRecord, i, br.Name, err)
			}
			ds.Buses = append(ds.Buses, rec)
		default:
			return nil, fmt.Errorf("%w #%d: unknown type %q", ErrInvalidRecord, i, br.Type)
		}
	}
	return ds, nil
}

// Options overlays the settings carried by the document onto base. A decoded
// document overrides only the keys it spells out; settings set directly on
// the struct replace the base values whole.
func (d *Document) Options(base transit.Options) transit.Options {
	switch {
	case d.routingRaw != nil:
		// already decoded once in UnmarshalJSON
		_ = json.Unmarshal(d.routingRaw, &base.Routing)
	case d.RoutingSettings != nil:
		base.Routing = *d.RoutingSettings
	}

	switch {
	case d.renderRaw != nil:
		// decoding reuses the slice, which belongs to the caller
		base.Render.ColorPalette = slices.Clone(base.Render.ColorPalette)
		_ = json.Unmarshal(d.renderRaw, &base.Render)
	case d.RenderSettings != nil:
		base.Render = *d.RenderSettings
	}
	return base
}
