package gtfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxArchiveSize bounds how much of a feed is read into memory.
const MaxArchiveSize = 512 << 20

var ErrNotZip = errors.New("gtfs archive is not a zip file")

var zipMagic = []byte("PK\x03\x04")

// Downloader fetches a GTFS archive from an http(s) URL or a local path.
type Downloader struct {
	source string
	client *http.Client
	logger *slog.Logger
}

func NewDownloader(source string, logger *slog.Logger) *Downloader {
	return &Downloader{
		source: source,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: logger.With("component", "gtfs_downloader"),
	}
}

func (d *Downloader) remote() bool {
	return strings.HasPrefix(d.source, "http://") || strings.HasPrefix(d.source, "https://")
}

// Download returns the raw archive bytes after checking they look like a zip.
func (d *Downloader) Download(ctx context.Context) ([]byte, error) {
	start := time.Now()

	var (
		data []byte
		err  error
	)
	if d.remote() {
		data, err = d.fetch(ctx)
	} else {
		data, err = d.readFile()
	}
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(data, zipMagic) {
		return nil, fmt.Errorf("%s: %w", d.source, ErrNotZip)
	}

	d.logger.Info("GTFS archive ready",
		"source", d.source,
		"size_mb", fmt.Sprintf("%.2f", float64(len(data))/(1<<20)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (d *Downloader) readFile() ([]byte, error) {
	f, err := os.Open(d.source)
	if err != nil {
		return nil, fmt.Errorf("read gtfs file: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func (d *Downloader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "transitcat/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download gtfs: %w", err)
	}
	defer resp.Body.Close()

	d.logger.Debug("received HTTP response",
		"status_code", resp.StatusCode,
		"content_length", resp.ContentLength,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download gtfs: unexpected status %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(data) > MaxArchiveSize {
		return nil, fmt.Errorf("archive exceeds %d bytes", MaxArchiveSize)
	}
	return data, nil
}
