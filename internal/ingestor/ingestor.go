// Package ingestor reads network sources (batch documents and GTFS feeds)
// and loads them into a finalized network.
package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/transit"
)

// Source yields a dataset to load.
type Source interface {
	Dataset(ctx context.Context) (*domain.Dataset, error)
}

// Build loads a dataset into a fresh loader and finalizes it.
func Build(ds *domain.Dataset, policy catalogue.Policy, opts transit.Options, logger *slog.Logger) (*transit.Network, error) {
	loader := transit.NewLoader(policy, logger)
	if err := loader.LoadDataset(ds); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return loader.Finalize(opts)
}

// BuildFrom fetches from src and builds the network.
func BuildFrom(ctx context.Context, src Source, policy catalogue.Policy, opts transit.Options, logger *slog.Logger) (*transit.Network, error) {
	ds, err := src.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return Build(ds, policy, opts, logger)
}

// FileSource reads a batch document from disk. Its settings override the
// options passed to Build via Options.
type FileSource struct {
	Path string

	doc *Document
}

func (f *FileSource) Dataset(context.Context) (*domain.Dataset, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	return f.doc.Dataset()
}

// Options overlays the document settings onto base. It reads the file if
// Dataset has not been called yet.
func (f *FileSource) Options(base transit.Options) (transit.Options, error) {
	if err := f.load(); err != nil {
		return base, err
	}
	return f.doc.Options(base), nil
}

func (f *FileSource) load() error {
	if f.doc != nil {
		return nil
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open network file: %w", err)
	}
	defer file.Close()

	doc, err := ReadDocument(file)
	if err != nil {
		return err
	}
	f.doc = doc
	return nil
}
