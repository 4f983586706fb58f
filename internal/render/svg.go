package render

import (
	"strconv"
	"strings"
)

type pathProps struct {
	fill        Color
	stroke      Color
	strokeWidth float64
	hasWidth    bool
	round       bool
}

type text struct {
	pos        Point
	offset     Point
	fontSize   int
	fontWeight string
	data       string
	props      pathProps
}

// document accumulates SVG 1.1 elements, one per line indented by two spaces.
type document struct {
	b strings.Builder
}

func newDocument() *document {
	d := &document{}
	d.b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?>` + "\n")
	d.b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" version="1.1">` + "\n")
	return d
}

func (d *document) polyline(points []Point, props pathProps) {
	d.b.WriteString(`  <polyline points="`)
	for i, p := range points {
		if i > 0 {
			d.b.WriteByte(' ')
		}
		d.b.WriteString(formatNumber(p.X))
		d.b.WriteByte(',')
		d.b.WriteString(formatNumber(p.Y))
	}
	d.b.WriteByte('"')
	d.attrs(props)
	d.b.WriteString(" />\n")
}

func (d *document) circle(center Point, radius float64, props pathProps) {
	d.b.WriteString(`  <circle cx="` + formatNumber(center.X) + `" cy="` + formatNumber(center.Y) + `" `)
	d.b.WriteString(`r="` + formatNumber(radius) + `"`)
	d.attrs(props)
	d.b.WriteString(" />\n")
}

func (d *document) text(t text) {
	d.b.WriteString(`  <text x="` + formatNumber(t.pos.X) + `" y="` + formatNumber(t.pos.Y) + `"`)
	d.b.WriteString(` dx="` + formatNumber(t.offset.X) + `" dy="` + formatNumber(t.offset.Y) + `"`)
	d.b.WriteString(` font-size="` + strconv.Itoa(t.fontSize) + `"`)
	d.b.WriteString(` font-family="Verdana"`)
	if t.fontWeight != "" {
		d.b.WriteString(` font-weight="` + t.fontWeight + `"`)
	}
	d.attrs(t.props)
	d.b.WriteByte('>')
	d.b.WriteString(escapeText(t.data))
	d.b.WriteString("</text>\n")
}

func (d *document) attrs(p pathProps) {
	if p.fill != "" {
		d.b.WriteString(` fill="` + string(p.fill) + `"`)
	}
	if p.stroke != "" {
		d.b.WriteString(` stroke="` + string(p.stroke) + `"`)
	}
	if p.hasWidth {
		d.b.WriteString(` stroke-width="` + formatNumber(p.strokeWidth) + `"`)
	}
	if p.round {
		d.b.WriteString(` stroke-linecap="round" stroke-linejoin="round"`)
	}
}

func (d *document) String() string {
	return d.b.String() + "</svg>"
}

var textEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&apos;",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
