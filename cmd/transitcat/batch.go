package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"transitcat/internal/config"
	"transitcat/internal/ingestor"
	"transitcat/internal/query"
)

func runBatch(cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	in := stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := ingestor.ReadDocument(in)
	if err != nil {
		return err
	}
	ds, err := doc.Dataset()
	if err != nil {
		return err
	}

	base, err := baseOptions(cfg)
	if err != nil {
		return err
	}
	network, err := ingestor.Build(ds, policy(cfg), doc.Options(base), logger)
	if err != nil {
		return err
	}

	out := query.NewProcessor(network).HandleAll(doc.StatRequests)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
