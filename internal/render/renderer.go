// Package render draws the network as an SVG map.
package render

import (
	"cmp"
	"slices"

	"transitcat/internal/domain"
	"transitcat/internal/geo"
)

// Source is the read side of a catalogue the renderer needs.
type Source interface {
	RoutesByName() []domain.Route
	Stops() []domain.Stop
	StopByID(id domain.StopID) domain.Stop
	IsServed(id domain.StopID) bool
}

type Renderer struct {
	settings Settings
}

func New(settings Settings) *Renderer {
	return &Renderer{settings: settings}
}

func (r *Renderer) Settings() Settings {
	return r.settings
}

// Render draws route lines, route labels, stop symbols and stop labels, in
// that order. Routes are drawn sorted by name and take palette colors in turn.
// The canvas is fitted to the served stops only; every stop still gets a
// symbol and a label, so a stop no route calls at may land off the canvas.
func (r *Renderer) Render(src Source) string {
	routes := slices.DeleteFunc(src.RoutesByName(), func(rt domain.Route) bool {
		return len(rt.Stops) == 0
	})

	stops := src.Stops()
	slices.SortFunc(stops, func(a, b domain.Stop) int {
		return cmp.Compare(a.Name, b.Name)
	})

	var points []geo.Coordinates
	for _, s := range stops {
		if src.IsServed(s.ID) {
			points = append(points, s.Coords)
		}
	}
	proj := newSphereProjector(points, r.settings.Width, r.settings.Height, r.settings.Padding)

	doc := newDocument()
	r.drawRouteLines(doc, src, proj, routes)
	r.drawRouteLabels(doc, src, proj, routes)
	r.drawStopSymbols(doc, proj, stops)
	r.drawStopLabels(doc, proj, stops)
	return doc.String()
}

func (r *Renderer) drawRouteLines(doc *document, src Source, proj sphereProjector, routes []domain.Route) {
	for i, rt := range routes {
		pts := make([]Point, 0, 2*len(rt.Stops))
		for _, id := range rt.Stops {
			pts = append(pts, proj.project(src.StopByID(id).Coords))
		}
		if !rt.Cyclic {
			for j := len(rt.Stops) - 2; j >= 0; j-- {
				pts = append(pts, proj.project(src.StopByID(rt.Stops[j]).Coords))
			}
		}

		doc.polyline(pts, pathProps{
			fill:        NoColor,
			stroke:      r.settings.paletteColor(i),
			strokeWidth: r.settings.LineWidth,
			hasWidth:    true,
			round:       true,
		})
	}
}

func (r *Renderer) drawRouteLabels(doc *document, src Source, proj sphereProjector, routes []domain.Route) {
	for i, rt := range routes {
		terminals := []domain.StopID{rt.Stops[0]}
		if last := rt.Stops[len(rt.Stops)-1]; !rt.Cyclic && last != rt.Stops[0] {
			terminals = append(terminals, last)
		}

		for _, id := range terminals {
			label := text{
				pos:        proj.project(src.StopByID(id).Coords),
				offset:     Point{X: r.settings.BusLabelOffset[0], Y: r.settings.BusLabelOffset[1]},
				fontSize:   r.settings.BusLabelFontSize,
				fontWeight: "bold",
				data:       rt.Name,
			}
			doc.text(r.underlayer(label))
			label.props = pathProps{fill: r.settings.paletteColor(i)}
			doc.text(label)
		}
	}
}

func (r *Renderer) drawStopSymbols(doc *document, proj sphereProjector, stops []domain.Stop) {
	for _, s := range stops {
		doc.circle(proj.project(s.Coords), r.settings.StopRadius, pathProps{fill: "white"})
	}
}

func (r *Renderer) drawStopLabels(doc *document, proj sphereProjector, stops []domain.Stop) {
	for _, s := range stops {
		label := text{
			pos:      proj.project(s.Coords),
			offset:   Point{X: r.settings.StopLabelOffset[0], Y: r.settings.StopLabelOffset[1]},
			fontSize: r.settings.StopLabelFontSize,
			data:     s.Name,
		}
		doc.text(r.underlayer(label))
		label.props = pathProps{fill: "black"}
		doc.text(label)
	}
}

func (r *Renderer) underlayer(t text) text {
	t.props = pathProps{
		fill:        r.settings.UnderlayerColor,
		stroke:      r.settings.UnderlayerColor,
		strokeWidth: r.settings.UnderlayerWidth,
		hasWidth:    true,
		round:       true,
	}
	return t
}
