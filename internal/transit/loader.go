// Package transit ties the catalogue, the routing graph and the map renderer
// into a network that is loaded once and then queried.
package transit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/geo"
	"transitcat/internal/render"
)

var (
	ErrFinalized       = errors.New("network already finalized")
	ErrInvalidSettings = errors.New("invalid routing settings")
)

// Options configures Finalize.
type Options struct {
	Routing domain.RoutingSettings
	Render  render.Settings
	// RouteMemoSize bounds the itinerary memo. Zero disables it.
	RouteMemoSize int
}

// DefaultOptions returns the settings used when a source supplies none.
func DefaultOptions() Options {
	return Options{
		Routing:       domain.DefaultRoutingSettings(),
		Render:        render.DefaultSettings(),
		RouteMemoSize: 1024,
	}
}

// Loader accumulates entities until Finalize turns them into a Network.
type Loader struct {
	mu     sync.Mutex
	cat    *catalogue.Catalogue
	done   bool
	logger *slog.Logger
}

func NewLoader(policy catalogue.Policy, logger *slog.Logger) *Loader {
	return &Loader{
		cat:    catalogue.New(policy),
		logger: logger.With("component", "loader"),
	}
}

func (l *Loader) AddStop(name string, coords geo.Coordinates) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrFinalized
	}
	_, err := l.cat.AddStop(name, coords)
	return err
}

func (l *Loader) AddRoute(name string, stops []string, cyclic bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrFinalized
	}
	_, err := l.cat.AddRoute(name, stops, cyclic)
	return err
}

func (l *Loader) SetDistance(from, to string, meters int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrFinalized
	}
	return l.cat.SetDistanceByName(from, to, meters)
}

// LoadDataset adds stops first, then their road distances, then routes, so
// records may refer to stops that appear later in the dataset.
func (l *Loader) LoadDataset(ds *domain.Dataset) error {
	for _, s := range ds.Stops {
		if err := l.AddStop(s.Name, geo.Coordinates{Lat: s.Latitude, Lng: s.Longitude}); err != nil {
			return fmt.Errorf("stop %q: %w", s.Name, err)
		}
	}
	for _, s := range ds.Stops {
		for to, meters := range s.RoadDistances {
			if err := l.SetDistance(s.Name, to, meters); err != nil {
				return err
			}
		}
	}
	for _, b := range ds.Buses {
		if err := l.AddRoute(b.Name, b.Stops, b.IsRoundtrip); err != nil {
			return fmt.Errorf("bus %q: %w", b.Name, err)
		}
	}
	return nil
}

// Finalize freezes the loaded entities and builds the routing graph. It
// succeeds at most once.
func (l *Loader) Finalize(opts Options) (*Network, error) {
	if opts.Routing.BusWaitTime < 0 || opts.Routing.BusVelocity <= 0 {
		return nil, fmt.Errorf("%w: wait %d min, velocity %v km/h",
			ErrInvalidSettings, opts.Routing.BusWaitTime, opts.Routing.BusVelocity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil, ErrFinalized
	}

	start := time.Now()
	if err := l.cat.Freeze(); err != nil {
		return nil, fmt.Errorf("freeze catalogue: %w", err)
	}
	l.done = true

	n, err := newNetwork(l.cat, opts)
	if err != nil {
		return nil, err
	}

	l.logger.Info("network finalized",
		"stops", l.cat.StopCount(),
		"routes", l.cat.RouteCount(),
		"vertices", n.router.Graph().VertexCount(),
		"edges", n.router.Graph().EdgeCount(),
		"fingerprint", n.fingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}
