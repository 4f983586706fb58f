package main

import (
	"fmt"
	"log/slog"
	"os"

	"transitcat/internal/catalogue"
	"transitcat/internal/config"
	"transitcat/internal/transit"
)

const usage = `usage:
  transitcat batch [file]   answer the stat requests of a JSON document (stdin when no file)
  transitcat serve          serve the network over HTTP and WebSocket`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "batch":
		// stdout carries the answers
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
		slog.SetDefault(logger)

		if err := runBatch(cfg, os.Args[2:], os.Stdin, os.Stdout, logger); err != nil {
			logger.Error("batch failed", "error", err)
			os.Exit(1)
		}

	case "serve":
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
		slog.SetDefault(logger)

		if err := runServe(cfg, logger); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func policy(cfg *config.Config) catalogue.Policy {
	return catalogue.Policy{
		StrictStops:     cfg.StrictStops,
		StrictDistances: cfg.StrictDistances,
	}
}

// baseOptions merges the settings file onto the defaults. Settings carried
// by a network document are applied on top later.
func baseOptions(cfg *config.Config) (transit.Options, error) {
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return transit.Options{}, err
	}

	opts := transit.DefaultOptions()
	opts.Routing = settings.Routing
	opts.Render = settings.Render
	opts.RouteMemoSize = cfg.RouteMemoSize
	return opts, nil
}
