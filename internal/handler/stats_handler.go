package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"transitcat/internal/hub"
	"transitcat/internal/transit"
)

// Stats holds process-wide request counters.
type Stats struct {
	startTime time.Time

	requests    atomic.Int64
	queries     atomic.Int64
	rateLimited atomic.Int64

	wsOpen atomic.Int64
	wsIn   atomic.Int64
	wsOut  atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()         { s.requests.Add(1) }
func (s *Stats) AddQueries(n int)     { s.queries.Add(int64(n)) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimited.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsOpen.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsOpen.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsOut.Add(1) }
func (s *Stats) IncCacheHits()        { s.cacheHits.Add(1) }
func (s *Stats) IncCacheMisses()      { s.cacheMisses.Add(1) }

// CountRequests counts every request passing through.
func CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServerStats.IncRequests()
		next.ServeHTTP(w, r)
	})
}

type ServerCounters struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	Requests      int64     `json:"requests"`
	Queries       int64     `json:"queries"`
	RateLimited   int64     `json:"rate_limited"`
}

type WebSocketCounters struct {
	Open        int64         `json:"open"`
	MessagesIn  int64         `json:"messages_in"`
	MessagesOut int64         `json:"messages_out"`
	Sessions    []hub.Session `json:"sessions"`
}

type CacheCounters struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

type RuntimeStats struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

type StatsResponse struct {
	Server    ServerCounters    `json:"server"`
	Network   transit.Stats     `json:"network"`
	WebSocket WebSocketCounters `json:"websocket"`
	Cache     CacheCounters     `json:"response_cache"`
	Runtime   RuntimeStats      `json:"runtime"`
}

// snapshot reads every counter once.
func (s *Stats) snapshot(now time.Time) (ServerCounters, WebSocketCounters, CacheCounters) {
	uptime := now.Sub(s.startTime)
	server := ServerCounters{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		StartTime:     s.startTime,
		Requests:      s.requests.Load(),
		Queries:       s.queries.Load(),
		RateLimited:   s.rateLimited.Load(),
	}
	ws := WebSocketCounters{
		Open:        s.wsOpen.Load(),
		MessagesIn:  s.wsIn.Load(),
		MessagesOut: s.wsOut.Load(),
		Sessions:    []hub.Session{},
	}
	c := CacheCounters{Hits: s.cacheHits.Load(), Misses: s.cacheMisses.Load()}
	if total := c.Hits + c.Misses; total > 0 {
		c.HitRatio = float64(c.Hits) / float64(total)
	}
	return server, ws, c
}

type StatsHandler struct {
	network *transit.Network
	hub     *hub.Hub
}

// NewStatsHandler reports on n and, when h is not nil, its live sessions.
func NewStatsHandler(n *transit.Network, h *hub.Hub) *StatsHandler {
	return &StatsHandler{network: n, hub: h}
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	server, ws, c := ServerStats.snapshot(time.Now())
	if h.hub != nil {
		ws.Sessions = h.hub.Sessions()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, StatsResponse{
		Server:    server,
		Network:   h.network.Stats(),
		WebSocket: ws,
		Cache:     c,
		Runtime: RuntimeStats{
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(mem.HeapAlloc) / (1 << 20),
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	})
}
