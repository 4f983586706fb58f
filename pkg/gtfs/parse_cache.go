package gtfs

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"transitcat/internal/domain"
)

const (
	cachePrefix = "dataset_"
	cacheSuffix = ".gob.gz"
)

// DefaultCacheDir is used when no cache directory is configured.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "transitcat-gtfs-cache")
}

// DataFingerprint is the hex sha256 of an archive.
func DataFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func datasetCachePath(cacheDir, fingerprint string) string {
	return filepath.Join(cacheDir, cachePrefix+fingerprint+cacheSuffix)
}

// LoadDataset reads a dataset previously stored for the same archive
// fingerprint. The returned path is set even on error.
func LoadDataset(cacheDir, fingerprint string) (*domain.Dataset, string, error) {
	path := datasetCachePath(cacheDir, fingerprint)

	var ds domain.Dataset
	if err := readGobGz(path, &ds); err != nil {
		return nil, path, err
	}
	if ds.Stops == nil {
		return nil, path, errors.New("dataset cache is incomplete")
	}
	return &ds, path, nil
}

// SaveDataset writes through a temporary file so readers never see a partial
// cache entry.
func SaveDataset(cacheDir, fingerprint string, ds *domain.Dataset) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	path := datasetCachePath(cacheDir, fingerprint)
	if err := writeGobGz(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

// PruneDatasets removes cached datasets other than the one for keep and
// returns how many files were deleted.
func PruneDatasets(cacheDir, keep string) (int, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return 0, err
	}

	keepName := filepath.Base(datasetCachePath(cacheDir, keep))
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keepName ||
			!strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, cacheSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(cacheDir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func readGobGz(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	return gob.NewDecoder(zr).Decode(v)
}

func writeGobGz(path string, v any) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	zw, err := gzip.NewWriterLevel(tmp, gzip.BestSpeed)
	if err != nil {
		tmp.Close()
		return err
	}
	if err = gob.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err = zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
