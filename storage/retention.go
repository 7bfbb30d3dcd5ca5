package storage

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// compressWindow bounds how many of the oldest kept files a single Rotate
// call will gzip, so rotation stays cheap on large directories.
const compressWindow = 10

// Rotate trims a record directory to its most recent maxCount files. Files
// matching pattern (a glob over the base name; a trailing ".gz" on disk is
// ignored when matching) are sorted by modification time descending, the
// newest maxCount are kept, and the rest are deleted. When compressOld is
// set, up to compressWindow of the oldest kept uncompressed files are
// additionally gzipped in place, so recent history costs less space without
// being evicted.
//
// Compression and deletion are independently idempotent: an
// already-compressed file or an already-removed file is a no-op.
func Rotate(dir, pattern string, maxCount int, compressOld bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type candidate struct {
		path  string
		mtime time.Time
	}
	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".gz")
		if ok, _ := filepath.Match(pattern, name); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // vanished mid-listing
		}
		files = append(files, candidate{path: filepath.Join(dir, entry.Name()), mtime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime.After(files[j].mtime) })

	if maxCount < 0 {
		maxCount = 0
	}
	kept := files
	if len(files) > maxCount {
		kept = files[:maxCount]
		for _, old := range files[maxCount:] {
			if err := os.Remove(old.path); err != nil && !os.IsNotExist(err) {
				log.WithError(err).WithField("path", old.path).Warn("telemetry: rotate delete failed")
			}
		}
	}

	if !compressOld {
		return nil
	}

	// Walk the kept set oldest-first and gzip a bounded trailing window.
	compressed := 0
	for i := len(kept) - 1; i >= 0 && compressed < compressWindow; i-- {
		path := kept[i].path
		if strings.HasSuffix(path, ".gz") {
			continue
		}
		if err := compressFile(path, kept[i].mtime); err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("path", path).Warn("telemetry: rotate compress failed")
			}
			continue
		}
		compressed++
	}
	return nil
}

// compressFile gzips path into path.gz and removes the original. The
// original modification time is carried over so rotation ordering is stable
// across compression.
func compressFile(path string, mtime time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dstPath := path + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return err
	}

	if err := os.Chtimes(dstPath, mtime, mtime); err != nil {
		log.WithError(err).WithField("path", dstPath).Debug("telemetry: keep mtime after compress failed")
	}
	return os.Remove(path)
}
