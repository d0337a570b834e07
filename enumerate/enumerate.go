/*
Package enumerate lists the regular files under one or more roots along with their sizes.
*/
package enumerate

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/spf13/afero"
)

type WalkStats struct {
	Files      uint64 `json:"files"`
	Bytes      uint64 `json:"bytes"`
	Dirs       uint64 `json:"dirs"`
	Excluded   uint64 `json:"excluded"`
	Irregular  uint64 `json:"irregular"`
	Unreadable uint64 `json:"unreadable"`
}

func (s *WalkStats) add(o WalkStats) {
	s.Files += o.Files
	s.Bytes += o.Bytes
	s.Dirs += o.Dirs
	s.Excluded += o.Excluded
	s.Irregular += o.Irregular
	s.Unreadable += o.Unreadable
}

// Walk returns every regular file under root sorted smallest first.
// Symlinks, devices and sockets are counted but never followed or returned.
// Excludes use gitignore syntax relative to root.
func Walk(fs afero.Fs, root string, excludes []string) ([]batch.FileRecord, WalkStats, error) {
	var stats WalkStats
	var records []batch.FileRecord
	root = filepath.Clean(root)
	if _, err := fs.Stat(root); err != nil {
		return nil, stats, fmt.Errorf("cannot scan %s: %w", root, err)
	}
	var matcher gitignore.IgnoreMatcher = gitignore.DummyIgnoreMatcher(false)
	if len(excludes) > 0 {
		matcher = gitignore.NewGitIgnoreFromReader(root, strings.NewReader(strings.Join(excludes, "\n")))
	}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// report and continue
			st.Logger.Warn().Str("path", path).Err(err).Msg("could not read path, skipping")
			stats.Unreadable++
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		isDir := info.IsDir()
		if path != root && matcher.Match(path, isDir) {
			stats.Excluded++
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isDir {
			stats.Dirs++
			return nil
		}
		if !info.Mode().IsRegular() {
			stats.Irregular++
			return nil
		}
		stats.Files++
		stats.Bytes += uint64(info.Size())
		records = append(records, batch.FileRecord{Path: path, Size: uint64(info.Size())})
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return nil, stats, err
	}
	batch.SortBySize(records)
	st.Logger.Info().Str("root", root).Uint64("files", stats.Files).Uint64("bytes", stats.Bytes).Uint64("excluded", stats.Excluded).Uint64("unreadable", stats.Unreadable).Msg("enumerated files")
	return records, stats, nil
}

// WalkAll walks each root and merges the results. A path reachable from two roots is listed once.
func WalkAll(fs afero.Fs, roots []string, excludes []string) ([]batch.FileRecord, WalkStats, error) {
	var total WalkStats
	var records []batch.FileRecord
	seen := map[string]bool{}
	for _, root := range roots {
		found, stats, err := Walk(fs, root, excludes)
		if err != nil {
			return nil, total, err
		}
		total.add(stats)
		for _, rec := range found {
			if seen[rec.Path] {
				total.Files--
				total.Bytes -= rec.Size
				continue
			}
			seen[rec.Path] = true
			records = append(records, rec)
		}
	}
	batch.SortBySize(records)
	return records, total, nil
}

// Seq hands records to the batch generator one at a time.
func Seq(records []batch.FileRecord) iter.Seq[batch.FileRecord] {
	return slices.Values(records)
}
