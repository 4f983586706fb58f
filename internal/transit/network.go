package transit

import (
	"fmt"
	"math"
	"sync"

	"github.com/bluele/gcache"
	"github.com/cespare/xxhash/v2"
	"github.com/twpayne/go-polyline"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/render"
	"transitcat/internal/router"
)

// Network answers queries over a finalized catalogue. All methods are safe for
// concurrent use.
type Network struct {
	cat         *catalogue.Catalogue
	router      *router.Router
	renderer    *render.Renderer
	memo        gcache.Cache
	fingerprint string

	mapOnce sync.Once
	mapSVG  string
}

type routeKey struct {
	from, to string
}

func newNetwork(cat *catalogue.Catalogue, opts Options) (*Network, error) {
	n := &Network{
		cat:      cat,
		router:   router.New(cat, opts.Routing),
		renderer: render.New(opts.Render),
	}

	if opts.RouteMemoSize > 0 {
		n.memo = gcache.New(opts.RouteMemoSize).LRU().Build()
	}

	d := xxhash.New()
	cat.WriteDigest(d)
	_, _ = fmt.Fprintf(d, "routing:%d:%v", opts.Routing.BusWaitTime, opts.Routing.BusVelocity)
	_, _ = fmt.Fprintf(d, "render:%+v", opts.Render)
	n.fingerprint = fmt.Sprintf("%016x", d.Sum64())

	return n, nil
}

// Fingerprint identifies the loaded data and settings. Two networks built from
// the same input share a fingerprint.
func (n *Network) Fingerprint() string {
	return n.fingerprint
}

func (n *Network) StopInfo(name string) domain.StopInfo {
	return n.cat.BusesForStop(name)
}

func (n *Network) BusInfo(name string) domain.RouteStats {
	return n.cat.Statistics(name)
}

// Route returns the fastest itinerary between two stops.
func (n *Network) Route(from, to string) domain.Itinerary {
	if n.memo == nil {
		return n.router.BuildRoute(from, to)
	}

	key := routeKey{from, to}
	if v, err := n.memo.Get(key); err == nil {
		return v.(domain.Itinerary)
	}

	it := n.router.BuildRoute(from, to)
	_ = n.memo.Set(key, it)
	return it
}

// RenderMap returns the SVG map. It is drawn on first use.
func (n *Network) RenderMap() string {
	n.mapOnce.Do(func() {
		n.mapSVG = n.renderer.Render(n.cat)
	})
	return n.mapSVG
}

// StopsInBounds returns the stops inside the box sorted by name.
func (n *Network) StopsInBounds(bb domain.BoundingBox) []domain.Stop {
	return n.cat.StopsInBounds(bb)
}

// Stop looks a stop up by name.
func (n *Network) Stop(name string) (domain.Stop, bool) {
	return n.cat.Stop(name)
}

// StopNames and RouteNames list what the network can be asked about.
func (n *Network) StopNames() []string {
	stops := n.cat.Stops()
	names := make([]string, len(stops))
	for i, s := range stops {
		names[i] = s.Name
	}
	return names
}

func (n *Network) RouteNames() []string {
	routes := n.cat.RoutesByName()
	names := make([]string, len(routes))
	for i, r := range routes {
		names[i] = r.Name
	}
	return names
}

// RouteShape returns the path a vehicle drives on the named route as an
// encoded polyline.
func (n *Network) RouteShape(name string) (string, bool) {
	r, ok := n.cat.Route(name)
	if !ok {
		return "", false
	}

	seq := n.cat.Expand(r)
	if len(seq) == 0 {
		return "", false
	}
	coords := make([][]float64, 0, len(seq))
	for _, id := range seq {
		c := n.cat.StopByID(id).Coords
		coords = append(coords, []float64{c.Lat, c.Lng})
	}
	return string(polyline.EncodeCoords(coords)), true
}

// Stats summarises the network for monitoring.
type Stats struct {
	Stops       int    `json:"stops"`
	Routes      int    `json:"routes"`
	Vertices    int    `json:"vertices"`
	Edges       int    `json:"edges"`
	MemoEntries int    `json:"memo_entries"`
	MemoHitRate string `json:"memo_hit_rate"`
	Fingerprint string `json:"fingerprint"`
}

func (n *Network) Stats() Stats {
	s := Stats{
		Stops:       n.cat.StopCount(),
		Routes:      n.cat.RouteCount(),
		Vertices:    n.router.Graph().VertexCount(),
		Edges:       n.router.Graph().EdgeCount(),
		Fingerprint: n.fingerprint,
		MemoHitRate: "0.00",
	}
	if n.memo != nil {
		s.MemoEntries = n.memo.Len(false)
		if rate := n.memo.HitRate(); !math.IsNaN(rate) {
			s.MemoHitRate = fmt.Sprintf("%.2f", rate)
		}
	}
	return s
}
