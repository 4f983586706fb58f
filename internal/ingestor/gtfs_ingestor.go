package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"transitcat/internal/domain"
	"transitcat/pkg/gtfs"
)

// GTFSIngestor turns a GTFS feed into a dataset, reusing a parsed copy from
// the cache directory when the archive has not changed.
type GTFSIngestor struct {
	downloader *gtfs.Downloader
	cacheDir   string
	opts       gtfs.ImportOptions
	logger     *slog.Logger
}

func NewGTFSIngestor(source, cacheDir string, opts gtfs.ImportOptions, logger *slog.Logger) *GTFSIngestor {
	if cacheDir == "" {
		cacheDir = gtfs.DefaultCacheDir()
	}
	return &GTFSIngestor{
		downloader: gtfs.NewDownloader(source, logger),
		cacheDir:   cacheDir,
		opts:       opts,
		logger:     logger.With("component", "gtfs_ingestor"),
	}
}

func (i *GTFSIngestor) Dataset(ctx context.Context) (*domain.Dataset, error) {
	start := time.Now()

	data, err := i.downloader.Download(ctx)
	if err != nil {
		return nil, err
	}

	// the import options change the output, so they are part of the key
	fingerprint := gtfs.DataFingerprint(data)
	if i.opts.ShapeDistUnit != "" {
		fingerprint += "_" + i.opts.ShapeDistUnit
	}
	i.logger.Info("GTFS fingerprint calculated", "sha256", fingerprint, "cache_dir", i.cacheDir)

	ds, cachePath, cacheErr := gtfs.LoadDataset(i.cacheDir, fingerprint)
	if cacheErr == nil {
		i.logger.Info("loaded dataset cache", "path", cachePath)
	} else {
		i.logger.Info("dataset cache miss, parsing archive", "path", cachePath, "error", cacheErr)
		ds, err = gtfs.Import(data, i.opts)
		if err != nil {
			return nil, fmt.Errorf("import gtfs: %w", err)
		}
		if savedPath, saveErr := gtfs.SaveDataset(i.cacheDir, fingerprint, ds); saveErr != nil {
			i.logger.Warn("failed to persist dataset cache", "error", saveErr)
		} else {
			i.logger.Info("persisted dataset cache", "path", savedPath)
			if n, err := gtfs.PruneDatasets(i.cacheDir, fingerprint); err != nil {
				i.logger.Warn("failed to prune dataset cache", "error", err)
			} else if n > 0 {
				i.logger.Info("pruned stale dataset caches", "removed", n)
			}
		}
	}

	i.logger.Info("GTFS import completed",
		"stops", len(ds.Stops),
		"buses", len(ds.Buses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}
