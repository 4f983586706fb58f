package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"transitcat/internal/catalogue"
	"transitcat/internal/geo"
)

const header = `<?xml version="1.0" encoding="UTF-8" ?>` + "\n" +
	`<svg xmlns="http://www.w3.org/2000/svg" version="1.1">` + "\n"

func TestRenderEmpty(t *testing.T) {
	c := catalogue.New(catalogue.Policy{})
	require.NoError(t, c.Freeze())

	assert.Equal(t, header+"</svg>", New(DefaultSettings()).Render(c))
}

func TestRenderSingleRoute(t *testing.T) {
	c := catalogue.New(catalogue.Policy{})
	_, err := c.AddStop("A&B", geo.Coordinates{Lat: 0, Lng: 0})
	require.NoError(t, err)
	_, err = c.AddStop("C", geo.Coordinates{Lat: 0, Lng: 1})
	require.NoError(t, err)
	_, err = c.AddStop("Unserved", geo.Coordinates{Lat: 5, Lng: 5})
	require.NoError(t, err)
	_, err = c.AddRoute("14", []string{"A&B", "C"}, false)
	require.NoError(t, err)
	require.NoError(t, c.Freeze())

	svg := New(DefaultSettings()).Render(c)

	assert.True(t, strings.HasPrefix(svg, header))
	assert.True(t, strings.HasSuffix(svg, "\n</svg>"))
	assert.Contains(t, svg,
		`  <polyline points="50,50 550,50 50,50" fill="none" stroke="green" stroke-width="14" stroke-linecap="round" stroke-linejoin="round" />`)
	assert.Contains(t, svg,
		`  <text x="50" y="50" dx="7" dy="15" font-size="20" font-family="Verdana" font-weight="bold" fill="rgba(255,255,255,0.85)" stroke="rgba(255,255,255,0.85)" stroke-width="3" stroke-linecap="round" stroke-linejoin="round">14</text>`)
	assert.Contains(t, svg,
		`  <text x="550" y="50" dx="7" dy="15" font-size="20" font-family="Verdana" font-weight="bold" fill="green">14</text>`)
	assert.Contains(t, svg, `  <circle cx="50" cy="50" r="5" fill="white" />`)
	assert.Contains(t, svg,
		`  <text x="50" y="50" dx="7" dy="-3" font-size="20" font-family="Verdana" fill="black">A&amp;B</text>`)

	// drawn with the rest, outside the canvas fitted to the route
	assert.Equal(t, 3, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, `  <circle cx="2550" cy="-2450" r="5" fill="white" />`)
	assert.Contains(t, svg,
		`  <text x="2550" y="-2450" dx="7" dy="-3" font-size="20" font-family="Verdana" fill="black">Unserved</text>`)

	// route lines, then route labels, then stop symbols, then stop labels
	assert.Less(t, strings.Index(svg, "<polyline"), strings.Index(svg, ">14</text>"))
	assert.Less(t, strings.LastIndex(svg, ">14</text>"), strings.Index(svg, "<circle"))
	assert.Less(t, strings.LastIndex(svg, "<circle"), strings.Index(svg, "A&amp;B</text>"))
}

func TestRenderCyclicRouteHasOneLabel(t *testing.T) {
	c := catalogue.New(catalogue.Policy{})
	for i, name := range []string{"A", "B", "C"} {
		_, err := c.AddStop(name, geo.Coordinates{Lat: float64(i % 2), Lng: float64(i)})
		require.NoError(t, err)
	}
	_, err := c.AddRoute("loop", []string{"A", "B", "C", "A"}, true)
	require.NoError(t, err)
	require.NoError(t, c.Freeze())

	svg := New(DefaultSettings()).Render(c)
	assert.Equal(t, 2, strings.Count(svg, ">loop</text>"))
	assert.Equal(t, 1, strings.Count(svg, "<polyline"))
}

func TestPaletteCycles(t *testing.T) {
	c := catalogue.New(catalogue.Policy{})
	_, err := c.AddStop("A", geo.Coordinates{Lat: 0, Lng: 0})
	require.NoError(t, err)
	_, err = c.AddStop("B", geo.Coordinates{Lat: 1, Lng: 1})
	require.NoError(t, err)
	for _, name := range []string{"4", "3", "2", "1"} {
		_, err = c.AddRoute(name, []string{"A", "B"}, false)
		require.NoError(t, err)
	}
	require.NoError(t, c.Freeze())

	settings := DefaultSettings()
	settings.ColorPalette = []Color{"red", "blue"}
	svg := New(settings).Render(c)

	var strokes []string
	for _, line := range strings.Split(svg, "\n") {
		if strings.Contains(line, "<polyline") {
			i := strings.Index(line, `stroke="`)
			strokes = append(strokes, strings.SplitN(line[i+8:], `"`, 2)[0])
		}
	}
	assert.Equal(t, []string{"red", "blue", "red", "blue"}, strokes)
}

func TestProjectorDegenerate(t *testing.T) {
	p := newSphereProjector([]geo.Coordinates{{Lat: 3, Lng: 3}}, 600, 400, 50)
	assert.Equal(t, Point{X: 50, Y: 50}, p.project(geo.Coordinates{Lat: 3, Lng: 3}))

	p = newSphereProjector(nil, 600, 400, 50)
	assert.Equal(t, Point{X: 50, Y: 50}, p.project(geo.Coordinates{Lat: 10, Lng: 10}))
}

func TestProjectorKeepsAspect(t *testing.T) {
	p := newSphereProjector([]geo.Coordinates{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, 600, 400, 50)
	// height limits the zoom: (400-100)/1
	assert.Equal(t, Point{X: 350, Y: 50}, p.project(geo.Coordinates{Lat: 1, Lng: 1}))
	assert.Equal(t, Point{X: 50, Y: 350}, p.project(geo.Coordinates{Lat: 0, Lng: 0}))
}

func TestColorDecoding(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Color
		wantErr bool
	}{
		{"named", `"green"`, "green", false},
		{"rgb", `[255, 160, 0]`, "rgb(255,160,0)", false},
		{"rgba", `[255, 255, 255, 0.85]`, "rgba(255,255,255,0.85)", false},
		{"wrong arity", `[1, 2]`, "", true},
		{"wrong type", `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Color
			err := json.Unmarshal([]byte(tt.json), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)

			// JSON arrays are valid YAML flow sequences
			var y Color
			require.NoError(t, yaml.Unmarshal([]byte(tt.json), &y))
			assert.Equal(t, tt.want, y)
		})
	}
}
