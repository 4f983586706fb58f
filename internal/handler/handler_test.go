package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"transitcat/internal/cache"
	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/transit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testNetwork(t *testing.T) *transit.Network {
	t.Helper()
	l := transit.NewLoader(catalogue.Policy{}, testLogger())
	require.NoError(t, l.LoadDataset(&domain.Dataset{
		Stops: []domain.StopRecord{
			{Name: "A", Latitude: 55.0, Longitude: 37.0, RoadDistances: map[string]int{"B": 1000}},
			{Name: "B", Latitude: 55.0, Longitude: 37.01, RoadDistances: map[string]int{"C": 1000}},
			{Name: "C", Latitude: 55.0, Longitude: 37.02},
			{Name: "Island", Latitude: 56.0, Longitude: 38.0},
		},
		Buses: []domain.BusRecord{
			{Name: "R", Stops: []string{"A", "B", "C"}},
		},
	}))

	opts := transit.DefaultOptions()
	opts.Routing = domain.RoutingSettings{BusWaitTime: 5, BusVelocity: 60}
	n, err := l.Finalize(opts)
	require.NoError(t, err)
	return n
}

// memCache is an in-process stand-in for the Redis cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

var errCacheDown = errors.New("cache down")

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errCacheDown
	}
	return m.data[key], nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errCacheDown
	}
	m.data[key] = value
	return nil
}

func (m *memCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := m.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (m *memCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, data, ttl)
}

func (m *memCache) GetCompressed(ctx context.Context, key string) ([]byte, error) {
	return m.Get(ctx, key)
}

func (m *memCache) SetCompressed(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Set(ctx, key, value, ttl)
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func get(h http.HandlerFunc, target string, pathValues ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetStop(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	rec := get(h.GetStop, "/v1/stops/B", "name", "B")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"B","buses":["R"]}`, rec.Body.String())

	rec = get(h.GetStop, "/v1/stops/Island", "name", "Island")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Island","buses":[]}`, rec.Body.String())

	rec = get(h.GetStop, "/v1/stops/nowhere", "name", "nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"stop not found"}`, rec.Body.String())
}

func TestGetStopReadsThroughCache(t *testing.T) {
	n := testNetwork(t)
	mc := newMemCache()
	h := NewNetworkHandler(n, mc, time.Minute, testLogger())

	rec := get(h.GetStop, "/v1/stops/A", "name", "A")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mc.has(cache.KeyStop(n.Fingerprint(), "A")))

	require.NoError(t, mc.SetJSON(context.Background(), cache.KeyStop(n.Fingerprint(), "A"),
		domain.StopInfo{Buses: []string{"cached"}}, time.Minute))
	rec = get(h.GetStop, "/v1/stops/A", "name", "A")
	assert.JSONEq(t, `{"name":"A","buses":["cached"]}`, rec.Body.String())

	rec = get(h.GetStop, "/v1/stops/nowhere", "name", "nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, mc.has(cache.KeyStop(n.Fingerprint(), "nowhere")))
}

func TestCacheFailureFallsBackToNetwork(t *testing.T) {
	mc := newMemCache()
	mc.fail = true
	h := NewNetworkHandler(testNetwork(t), mc, time.Minute, testLogger())

	rec := get(h.GetBus, "/v1/buses/R", "name", "R")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBus(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	rec := get(h.GetBus, "/v1/buses/R", "name", "R")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "R", body["name"])
	assert.EqualValues(t, 5, body["stop_count"])
	assert.EqualValues(t, 3, body["unique_stop_count"])
	assert.EqualValues(t, 4000, body["route_length"])
	assert.Contains(t, body, "curvature")

	rec = get(h.GetBus, "/v1/buses/X", "name", "X")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBuses(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	rec := get(h.ListBuses, "/v1/buses")
	assert.JSONEq(t, `{"buses":["R"],"count":1}`, rec.Body.String())
}

func TestGetBusShape(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	rec := get(h.GetBusShape, "/v1/buses/R/shape", "name", "R")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ShapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	coords, _, err := polyline.DecodeCoords([]byte(body.Polyline))
	require.NoError(t, err)
	assert.Len(t, coords, 5)

	rec = get(h.GetBusShape, "/v1/buses/X/shape", "name", "X")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRoute(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), newMemCache(), time.Minute, testLogger())

	rec := get(h.GetRoute, "/v1/route?from=A&to=C")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"from": "A",
		"to": "C",
		"total_time": 7,
		"items": [
			{"type": "Wait", "stop_name": "A", "time": 5},
			{"type": "Bus", "bus": "R", "span_count": 2, "time": 2}
		]
	}`, rec.Body.String())

	// second answer comes from the cache and must match
	again := get(h.GetRoute, "/v1/route?from=A&to=C")
	assert.JSONEq(t, rec.Body.String(), again.Body.String())

	rec = get(h.GetRoute, "/v1/route?from=A&to=A")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"from":"A","to":"A","total_time":0,"items":[]}`, rec.Body.String())

	rec = get(h.GetRoute, "/v1/route?from=A&to=Island")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(h.GetRoute, "/v1/route?from=A")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStops(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	rec := get(h.ListStops, "/v1/stops")
	require.Equal(t, http.StatusOK, rec.Code)
	var all StopsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 4, all.Count)

	rec = get(h.ListStops, "/v1/stops?bbox=54.9,36.99,55.1,37.015")
	require.Equal(t, http.StatusOK, rec.Code)
	var some StopsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &some))
	require.Equal(t, 2, some.Count)
	assert.Equal(t, "A", some.Stops[0].Name)
	assert.Equal(t, "B", some.Stops[1].Name)

	for _, bad := range []string{"1,2,3", "a,b,c,d", "56,37,55,38"} {
		rec = get(h.ListStops, "/v1/stops?bbox="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestGetMap(t *testing.T) {
	n := testNetwork(t)
	mc := newMemCache()
	h := NewNetworkHandler(n, mc, time.Minute, testLogger())

	rec := get(h.GetMap, "/v1/map")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<?xml version="1.0" encoding="UTF-8" ?>`))
	assert.Equal(t, n.RenderMap(), rec.Body.String())
	assert.True(t, mc.has(cache.KeyMap(n.Fingerprint())))

	req := httptest.NewRequest(http.MethodGet, "/v1/map", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	notModified := httptest.NewRecorder()
	h.GetMap(notModified, req)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Zero(t, notModified.Body.Len())
}

func TestMiddleware(t *testing.T) {
	big := strings.Repeat(`{"name":"stop"},`, 200)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(big))
	})
	gz, err := DefaultCompression().Wrap(inner)
	require.NoError(t, err)
	h := CORS{MaxAge: 600}.Wrap(gz)

	req := httptest.NewRequest(http.MethodGet, "/v1/stops", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Less(t, rec.Body.Len(), len(big))

	req = httptest.NewRequest(http.MethodOptions, "/v1/query", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCompressionSkipsOtherTypes(t *testing.T) {
	body := strings.Repeat("x", 4096)
	gz, err := DefaultCompression().Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(body))
	}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	gz.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())

	_, err = Compression{Level: 42}.Wrap(http.NotFoundHandler())
	assert.Error(t, err)
}

func TestCORSOrigins(t *testing.T) {
	h := CORS{Origins: []string{"https://map.example"}}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin string
		want   string
	}{
		{"https://map.example", "https://map.example"},
		{"https://evil.example", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/map", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		assert.Equal(t, "Origin", rec.Header().Get("Vary"), tt.origin)
		assert.Empty(t, rec.Header().Get("Access-Control-Max-Age"))
	}
}

func TestQuery(t *testing.T) {
	h := NewNetworkHandler(testNetwork(t), nil, time.Minute, testLogger())

	body := `[
		{"id": 1, "type": "Stop", "name": "B"},
		{"id": 2, "type": "Bus", "name": "missing"},
		{"id": 3, "type": "Route", "from": "A", "to": "B"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"request_id": 1, "buses": ["R"]},
		{"request_id": 2, "error_message": "not found"},
		{"request_id": 3, "total_time": 6, "items": [
			{"type": "Wait", "stop_name": "A", "time": 5},
			{"type": "Bus", "bus": "R", "span_count": 1, "time": 1}
		]}
	]`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.Query(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(testNetwork(t), nil)

	rec := get(h.Readyz, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, 4, body.StopCount)
	assert.Equal(t, 1, body.RouteCount)
	assert.Equal(t, "disabled", body.Cache)

	rec = get(NewHealthHandler(nil, nil).Readyz, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(h.Healthz, "/healthz")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetStats(t *testing.T) {
	h := NewStatsHandler(testNetwork(t), nil)

	rec := get(h.GetStats, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	var body StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Network.Stops)
	assert.Equal(t, 8, body.Network.Vertices)
	assert.NotEmpty(t, body.Network.Fingerprint)
}

func TestStatsSnapshot(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &Stats{startTime: t0}
	s.IncCacheHits()
	s.IncCacheHits()
	s.IncCacheHits()
	s.IncCacheMisses()
	s.AddQueries(4)
	s.IncWSConnections()
	s.IncWSConnections()
	s.DecWSConnections()

	server, ws, c := s.snapshot(t0.Add(90 * time.Second))
	assert.Equal(t, "1m30s", server.Uptime)
	assert.Equal(t, int64(4), server.Queries)
	assert.Equal(t, int64(1), ws.Open)
	assert.InDelta(t, 0.75, c.HitRatio, 1e-9)
}
