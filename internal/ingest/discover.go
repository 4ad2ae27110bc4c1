package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
)

// Options controls which files count as documents.
type Options struct {
	Extensions []string // empty = constants.AllowedExtensions
	SkipHidden bool
	Recursive  bool
}

// DirStats summarizes a discovery pass.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32 // hidden or unreadable entries
}

// DiscoverDocuments lists the documents under root, sorted by absolute path so
// that every run over the same directory sees the same order.
func DiscoverDocuments(root string, opts Options) ([]entity.SourceDocument, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.NewConfigError("input directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, stats, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("input directory %s: %w", abs, common.ErrInvalidInput)
	}

	exts := constants.ExtensionSet(opts.Extensions)
	var docs []entity.SourceDocument

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if path == abs {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			// an unreadable subdirectory is skipped; the walk continues
			stats.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.SkipHidden && IsHidden(path) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !AllowedExt(filepath.Ext(path), exts) {
			return nil
		}
		fi, err := os.Stat(path) // follows symlinks
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed between listing and stat
				stats.Skipped++
				return nil
			}
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		stats.Matched++
		docs = append(docs, entity.SourceDocument{
			Path: path,
			Name: d.Name(),
			Size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk %s: %w", abs, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, stats, nil
}
