package ingestor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/render"
	"transitcat/internal/transit"
)

const sampleDocument = `{
  "base_requests": [
    {"type": "Bus", "name": "114", "stops": ["Морской вокзал", "Ривьерский мост"], "is_roundtrip": false},
    {"type": "Stop", "name": "Ривьерский мост", "latitude": 43.587795, "longitude": 39.716901,
     "road_distances": {"Морской вокзал": 850}},
    {"type": "Stop", "name": "Морской вокзал", "latitude": 43.581969, "longitude": 39.719848,
     "road_distances": {"Ривьерский мост": 850, "Nowhere": 10}}
  ],
  "routing_settings": {"bus_wait_time": 2, "bus_velocity": 30},
  "render_settings": {
    "width": 200, "height": 200, "padding": 30, "stop_radius": 5, "line_width": 14,
    "bus_label_font_size": 20, "bus_label_offset": [7, 15],
    "stop_label_font_size": 18, "stop_label_offset": [7, -3],
    "underlayer_color": [255, 255, 255, 0.85], "underlayer_width": 3,
    "color_palette": ["green", [255, 160, 0], "red"]
  },
  "stat_requests": [
    {"id": 1, "type": "Map"},
    {"id": 2, "type": "Stop", "name": "Ривьерский мост"},
    {"id": 3, "type": "Route", "from": "Морской вокзал", "to": "Ривьерский мост"}
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadDocument(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	require.Len(t, doc.BaseRequests, 3)
	require.NotNil(t, doc.RoutingSettings)
	assert.Equal(t, domain.RoutingSettings{BusWaitTime: 2, BusVelocity: 30}, *doc.RoutingSettings)
	require.NotNil(t, doc.RenderSettings)
	assert.Equal(t, render.Color("rgba(255,255,255,0.85)"), doc.RenderSettings.UnderlayerColor)
	assert.Equal(t, []render.Color{"green", "rgb(255,160,0)", "red"}, doc.RenderSettings.ColorPalette)
	assert.Len(t, doc.StatRequests, 3)

	ds, err := doc.Dataset()
	require.NoError(t, err)
	assert.Len(t, ds.Stops, 2)
	assert.Len(t, ds.Buses, 1)

	opts := doc.Options(transit.DefaultOptions())
	assert.Equal(t, 2, opts.Routing.BusWaitTime)
	assert.Equal(t, 200.0, opts.Render.Width)
}

func TestReadDocumentMalformed(t *testing.T) {
	_, err := ReadDocument(strings.NewReader(`{"base_requests": [`))
	assert.Error(t, err)
}

func TestDatasetValidation(t *testing.T) {
	tests := []struct {
		name string
		req  BaseRequest
	}{
		{"unknown type", BaseRequest{Type: "Tram", Name: "T"}},
		{"stop without name", BaseRequest{Type: "Stop", Latitude: 1, Longitude: 1}},
		{"latitude out of range", BaseRequest{Type: "Stop", Name: "S", Latitude: 91}},
		{"negative distance", BaseRequest{Type: "Stop", Name: "S", RoadDistances: map[string]int{"X": -1}}},
		{"bus without name", BaseRequest{Type: "Bus", Stops: []string{"S"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{BaseRequests: []BaseRequest{tt.req}}
			_, err := doc.Dataset()
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestOptionsWithoutSettings(t *testing.T) {
	doc := &Document{}
	assert.Equal(t, transit.DefaultOptions(), doc.Options(transit.DefaultOptions()))
}

func TestOptionsOverlayPartialSettings(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(`{
		"base_requests": [],
		"routing_settings": {"bus_wait_time": 3},
		"render_settings": {"width": 300, "color_palette": ["blue"]}
	}`))
	require.NoError(t, err)

	base := transit.DefaultOptions()
	base.Routing = domain.RoutingSettings{BusWaitTime: 6, BusVelocity: 25}
	basePalette := []render.Color{"green", "red"}
	base.Render.ColorPalette = basePalette

	opts := doc.Options(base)
	assert.Equal(t, domain.RoutingSettings{BusWaitTime: 3, BusVelocity: 25}, opts.Routing)
	assert.Equal(t, 300.0, opts.Render.Width)
	assert.Equal(t, base.Render.Height, opts.Render.Height)
	assert.Equal(t, []render.Color{"blue"}, opts.Render.ColorPalette)
	assert.Equal(t, []render.Color{"green", "red"}, basePalette, "base palette is left alone")

	l := transit.NewLoader(catalogue.Policy{}, testLogger())
	_, err = l.Finalize(opts)
	assert.NoError(t, err)
}

func TestOptionsNullSettings(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(`{"routing_settings": null}`))
	require.NoError(t, err)
	assert.Nil(t, doc.RoutingSettings)
	assert.Equal(t, transit.DefaultOptions(), doc.Options(transit.DefaultOptions()))
}

func TestBuildFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o644))

	src := &FileSource{Path: path}
	opts, err := src.Options(transit.DefaultOptions())
	require.NoError(t, err)

	n, err := BuildFrom(context.Background(), src, catalogue.Policy{}, opts, testLogger())
	require.NoError(t, err)

	info := n.StopInfo("Ривьерский мост")
	assert.True(t, info.Found)
	assert.Equal(t, []string{"114"}, info.Buses)

	it := n.Route("Морской вокзал", "Ривьерский мост")
	require.True(t, it.Found)
	// 2 min wait + 0.85 km at 30 km/h
	assert.InDelta(t, 2+1.7, it.TotalTime, 1e-9)

	stats := n.BusInfo("114")
	assert.Equal(t, 1700, stats.RouteLength)
	assert.Equal(t, 3, stats.TotalStops)
}

func TestFileSourceMissing(t *testing.T) {
	src := &FileSource{Path: filepath.Join(t.TempDir(), "absent.json")}
	_, err := src.Dataset(context.Background())
	assert.Error(t, err)
}
