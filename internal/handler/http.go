package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transitcat/internal/cache"
	"transitcat/internal/domain"
	"transitcat/internal/query"
	"transitcat/internal/transit"
)

const maxQueryBody = 1 << 20

// ResponseCache is the subset of the Redis cache the handlers read through.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetCompressed(ctx context.Context, key string) ([]byte, error)
	SetCompressed(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type NetworkHandler struct {
	network   *transit.Network
	processor *query.Processor
	cache     ResponseCache
	ttl       time.Duration
	logger    *slog.Logger
}

// NewNetworkHandler serves the network over HTTP. rc may be nil.
func NewNetworkHandler(n *transit.Network, rc ResponseCache, ttl time.Duration, logger *slog.Logger) *NetworkHandler {
	return &NetworkHandler{
		network:   n,
		processor: query.NewProcessor(n),
		cache:     rc,
		ttl:       ttl,
		logger:    logger.With("handler", "network"),
	}
}

type StopsResponse struct {
	Stops []domain.Stop `json:"stops"`
	Count int           `json:"count"`
}

type StopResponse struct {
	Name  string   `json:"name"`
	Buses []string `json:"buses"`
}

type BusesResponse struct {
	Buses []string `json:"buses"`
	Count int      `json:"count"`
}

type BusResponse struct {
	Name string `json:"name"`
	domain.RouteStats
}

type ShapeResponse struct {
	Name     string `json:"name"`
	Polyline string `json:"polyline"`
}

type RouteResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	domain.Itinerary
}

func (h *NetworkHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	bboxStr := r.URL.Query().Get("bbox")
	if bboxStr == "" {
		stops := h.network.StopsInBounds(domain.WorldBounds)
		respondJSON(w, http.StatusOK, StopsResponse{Stops: stops, Count: len(stops)})
		return
	}

	parts := strings.Split(bboxStr, ",")
	if len(parts) != 4 {
		respondError(w, http.StatusBadRequest, "invalid bbox format: expected minLat,minLon,maxLat,maxLon")
		return
	}
	bbox, err := parseBBox(parts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid bbox values: "+err.Error())
		return
	}
	if !bbox.Valid() {
		respondError(w, http.StatusBadRequest, "invalid bbox: min must not exceed max")
		return
	}

	stops := h.network.StopsInBounds(bbox)
	respondJSON(w, http.StatusOK, StopsResponse{Stops: stops, Count: len(stops)})
}

func (h *NetworkHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing stop name")
		return
	}

	key := cache.KeyStop(h.network.Fingerprint(), name)
	var info domain.StopInfo
	if h.tryGetFromCache(r.Context(), key, &info) {
		respondJSON(w, http.StatusOK, StopResponse{Name: name, Buses: info.Buses})
		return
	}

	info = h.network.StopInfo(name)
	if !info.Found {
		respondError(w, http.StatusNotFound, "stop not found")
		return
	}
	h.storeJSON(r.Context(), key, info)

	h.logger.Debug("stop served",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"stop", name,
		"buses", len(info.Buses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, StopResponse{Name: name, Buses: info.Buses})
}

func (h *NetworkHandler) ListBuses(w http.ResponseWriter, r *http.Request) {
	names := h.network.RouteNames()
	respondJSON(w, http.StatusOK, BusesResponse{Buses: names, Count: len(names)})
}

func (h *NetworkHandler) GetBus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing bus name")
		return
	}

	key := cache.KeyBus(h.network.Fingerprint(), name)
	var stats domain.RouteStats
	if h.tryGetFromCache(r.Context(), key, &stats) {
		respondJSON(w, http.StatusOK, BusResponse{Name: name, RouteStats: stats})
		return
	}

	stats = h.network.BusInfo(name)
	if !stats.Found {
		respondError(w, http.StatusNotFound, "bus not found")
		return
	}
	h.storeJSON(r.Context(), key, stats)

	h.logger.Debug("bus served",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"bus", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, BusResponse{Name: name, RouteStats: stats})
}

func (h *NetworkHandler) GetBusShape(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing bus name")
		return
	}

	key := cache.KeyShape(h.network.Fingerprint(), name)
	if data := h.tryGetRaw(r.Context(), key); data != nil {
		respondJSON(w, http.StatusOK, ShapeResponse{Name: name, Polyline: string(data)})
		return
	}

	shape, ok := h.network.RouteShape(name)
	if !ok {
		respondError(w, http.StatusNotFound, "bus not found")
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, []byte(shape), h.ttl); err != nil {
			h.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, ShapeResponse{Name: name, Polyline: shape})
}

func (h *NetworkHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	key := cache.KeyRoute(h.network.Fingerprint(), from, to)
	var it domain.Itinerary
	if h.tryGetFromCache(r.Context(), key, &it) {
		respondJSON(w, http.StatusOK, newRouteResponse(from, to, it))
		return
	}

	it = h.network.Route(from, to)
	if !it.Found {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	h.storeJSON(r.Context(), key, it)

	h.logger.Debug("route served",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"from", from,
		"to", to,
		"total_time", it.TotalTime,
		"steps", len(it.Items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, newRouteResponse(from, to, it))
}

func newRouteResponse(from, to string, it domain.Itinerary) RouteResponse {
	if it.Items == nil {
		it.Items = []domain.Step{}
	}
	return RouteResponse{From: from, To: to, Itinerary: it}
}

// GetMap serves the SVG map. The network fingerprint doubles as its ETag.
func (h *NetworkHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	etag := `"` + h.network.Fingerprint() + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	key := cache.KeyMap(h.network.Fingerprint())

	var svg []byte
	if h.cache != nil {
		data, err := h.cache.GetCompressed(r.Context(), key)
		switch {
		case err != nil:
			h.logger.Warn("cache read failed", "key", key, "error", err)
		case data != nil:
			ServerStats.IncCacheHits()
			svg = data
		}
	}
	if svg == nil {
		if h.cache != nil {
			ServerStats.IncCacheMisses()
		}
		svg = []byte(h.network.RenderMap())
		if h.cache != nil {
			if err := h.cache.SetCompressed(r.Context(), key, svg, h.ttl); err != nil {
				h.logger.Warn("cache write failed", "key", key, "error", err)
			}
		}
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// Query answers a batch of stat requests in the same format as the batch CLI.
func (h *NetworkHandler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)

	var reqs []query.Request
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out := h.processor.HandleAll(reqs)
	ServerStats.AddQueries(len(reqs))

	h.logger.Debug("query served",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"requests", len(reqs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, out)
}

func (h *NetworkHandler) tryGetFromCache(ctx context.Context, key string, dest any) bool {
	if h.cache == nil {
		return false
	}
	found, err := h.cache.GetJSON(ctx, key, dest)
	if err != nil {
		h.logger.Warn("cache read failed", "key", key, "error", err)
		ServerStats.IncCacheMisses()
		return false
	}
	if !found {
		ServerStats.IncCacheMisses()
		return false
	}
	ServerStats.IncCacheHits()
	return true
}

func (h *NetworkHandler) tryGetRaw(ctx context.Context, key string) []byte {
	if h.cache == nil {
		return nil
	}
	data, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if data == nil {
		ServerStats.IncCacheMisses()
		return nil
	}
	ServerStats.IncCacheHits()
	return data
}

func (h *NetworkHandler) storeJSON(ctx context.Context, key string, value any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetJSON(ctx, key, value, h.ttl); err != nil {
		h.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func parseBBox(parts []string) (domain.BoundingBox, error) {
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, err
		}
		vals[i] = v
	}
	return domain.BoundingBox{
		MinLat: vals[0], MinLon: vals[1],
		MaxLat: vals[2], MaxLon: vals[3],
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
