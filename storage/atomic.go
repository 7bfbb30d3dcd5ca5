// Package storage implements the file side of the telemetry layer: atomic
// JSON writes, gzip-aware reads, rotation of per-record directories, and
// the Persister that owns the on-disk layout for a single writer process.
package storage

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteJSON atomically writes v as a JSON document at path, optionally
// gzip-compressed. The document is staged in a temp file in the target's
// directory (same filesystem) and moved into place with a single rename, so
// a concurrent reader observes either the old content or the new content,
// never a partial write. On failure the temp file is removed and the
// destination is left untouched. Parent directories are created on demand.
func WriteJSON(path string, v any, compress bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteDocument(path, data, compress)
}

// WriteDocument atomically writes an already-serialized document.
func WriteDocument(path string, data []byte, compress bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if err := writeAll(tmp, data, compress); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeAll(f *os.File, data []byte, compress bool) error {
	if !compress {
		_, err := f.Write(data)
		return err
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// ReadDocument reads a serialized document, transparently gunzipping when
// the path carries a ".gz" suffix.
func ReadDocument(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".gz") {
		return io.ReadAll(f)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", filepath.Base(path), err)
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
