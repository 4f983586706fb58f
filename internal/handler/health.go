package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"transitcat/internal/transit"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	network *transit.Network
	cache   Pinger
}

// NewHealthHandler reports readiness for the network. cache may be nil.
func NewHealthHandler(n *transit.Network, cache Pinger) *HealthHandler {
	return &HealthHandler{
		network: n,
		cache:   cache,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready       bool      `json:"ready"`
	StopCount   int       `json:"stopCount"`
	RouteCount  int       `json:"routeCount"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Cache       string    `json:"cache"`
	ServerTime  time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Ready:      h.network != nil,
		Cache:      h.cacheStatus(r.Context()),
		ServerTime: time.Now(),
	}
	if h.network != nil {
		s := h.network.Stats()
		resp.StopCount = s.Stops
		resp.RouteCount = s.Routes
		resp.Fingerprint = s.Fingerprint
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) cacheStatus(ctx context.Context) string {
	if h.cache == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.cache.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
