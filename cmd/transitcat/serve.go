package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transitcat/internal/cache"
	"transitcat/internal/config"
	"transitcat/internal/handler"
	"transitcat/internal/hub"
	"transitcat/internal/ingestor"
	"transitcat/internal/middleware"
	"transitcat/internal/transit"
	"transitcat/pkg/gtfs"
)

func runServe(cfg *config.Config, logger *slog.Logger) error {
	if cfg.NeedsSource() {
		return errors.New("nothing to serve: set NETWORK_FILE or GTFS_ENABLED")
	}

	logger.Info("starting transitcat server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"gtfs_enabled", cfg.GTFSEnabled,
		"redis_enabled", cfg.RedisEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	network, err := loadNetwork(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}

	var (
		responseCache handler.ResponseCache
		pinger        handler.Pinger
	)
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, serving without cache", "error", err)
		} else {
			defer redisCache.Close()
			responseCache = redisCache
			pinger = redisCache

			if cfg.CacheWarmOnStart {
				warmer := cache.NewCacheWarmer(redisCache, network, cfg.CacheTTL, logger)
				go func() {
					if err := warmer.WarmAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("cache warming failed", "error", err)
					}
				}()
			}
		}
	}

	wsHub := hub.NewHub(logger)
	limiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		cfg.RateLimitWhitelist,
		handler.ServerStats.IncRateLimitBlocked,
		logger,
	)

	networkHandler := handler.NewNetworkHandler(network, responseCache, cfg.CacheTTL, logger)
	wsHandler := handler.NewWSHandler(wsHub, network, logger)
	healthHandler := handler.NewHealthHandler(network, pinger)
	statsHandler := handler.NewStatsHandler(network, wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/stops", networkHandler.ListStops)
	mux.HandleFunc("GET /v1/stops/{name}", networkHandler.GetStop)
	mux.HandleFunc("GET /v1/buses", networkHandler.ListBuses)
	mux.HandleFunc("GET /v1/buses/{name}", networkHandler.GetBus)
	mux.HandleFunc("GET /v1/buses/{name}/shape", networkHandler.GetBusShape)
	mux.HandleFunc("GET /v1/route", networkHandler.GetRoute)
	mux.HandleFunc("GET /v1/map", networkHandler.GetMap)
	mux.HandleFunc("POST /v1/query", networkHandler.Query)

	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	compressed, err := handler.DefaultCompression().Wrap(mux)
	if err != nil {
		return err
	}

	// upgraded connections bypass gzip
	root := http.NewServeMux()
	root.HandleFunc("/v1/ws", wsHandler.ServeWS)
	root.Handle("/", compressed)

	cors := handler.CORS{Origins: cfg.CORSAllowedOrigins, MaxAge: 600}
	api := handler.CountRequests(limiter.Middleware(cors.Wrap(root)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)
	go limiter.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("HTTP server error", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func loadNetwork(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transit.Network, error) {
	opts, err := baseOptions(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.NetworkFile != "" {
		src := &ingestor.FileSource{Path: cfg.NetworkFile}
		opts, err = src.Options(opts)
		if err != nil {
			return nil, err
		}
		return ingestor.BuildFrom(ctx, src, policy(cfg), opts, logger)
	}

	src := ingestor.NewGTFSIngestor(cfg.GTFSURL, cfg.GTFSCacheDir, gtfs.ImportOptions{
		ShapeDistUnit: cfg.GTFSShapeDistUnit,
	}, logger)
	return ingestor.BuildFrom(ctx, src, policy(cfg), opts, logger)
}
