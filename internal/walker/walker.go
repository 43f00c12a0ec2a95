// Package walker expands command line arguments into the PDF files to
// ingest.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize is the largest file collected (50 MB).
const DefaultMaxFileSize int64 = 50 << 20

// FileInfo describes one collected file.
type FileInfo struct {
	Path string // Absolute path on disk.
	Name string // Base name, used as the upload filename.
	Size int64
}

// Config controls Collect.
type Config struct {
	// Patterns are files, directories or doublestar globs. Directories are
	// searched recursively for *.pdf.
	Patterns    []string
	Exclude     []string // Glob patterns; matching files are skipped.
	MaxFileSize int64    // Files larger than this are skipped (0 = use default).
}

// Skipped is a file that matched but was not collected.
type Skipped struct {
	Path   string
	Reason string
}

// Collect resolves cfg.Patterns into a sorted, de-duplicated list of PDF
// files. Files named explicitly are collected whatever their extension;
// files found through globs or directories must end in .pdf.
func Collect(cfg Config) ([]FileInfo, []Skipped, error) {
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	c := &collector{exclude: cfg.Exclude, maxSize: maxSize, seen: make(map[string]bool)}
	for _, pattern := range cfg.Patterns {
		if err := c.add(pattern); err != nil {
			return nil, nil, err
		}
	}

	sort.Slice(c.files, func(i, j int) bool { return c.files[i].Path < c.files[j].Path })
	return c.files, c.skipped, nil
}

type collector struct {
	exclude []string
	maxSize int64
	seen    map[string]bool
	files   []FileInfo
	skipped []Skipped
}

func (c *collector) add(pattern string) error {
	info, err := os.Stat(pattern)
	switch {
	case err == nil && info.IsDir():
		return c.walkDir(pattern)
	case err == nil:
		c.consider(pattern, info, true)
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("walker: stat %s: %w", pattern, err)
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("walker: bad pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("walker: no files match %q", pattern)
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			c.skipped = append(c.skipped, Skipped{Path: m, Reason: err.Error()})
			continue
		}
		if info.IsDir() {
			continue
		}
		c.consider(m, info, false)
	}
	return nil
}

func (c *collector) walkDir(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path != root && shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !isPDF(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		c.consider(path, info, false)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walker: traversal: %w", err)
	}
	return nil
}

func (c *collector) consider(path string, info fs.FileInfo, explicit bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if c.seen[abs] {
		return
	}
	c.seen[abs] = true

	switch {
	case !explicit && !isPDF(info.Name()):
		return
	case MatchesExclude(abs, c.exclude):
		return
	case info.Size() > c.maxSize:
		c.skipped = append(c.skipped, Skipped{Path: abs, Reason: fmt.Sprintf("larger than %d bytes", c.maxSize)})
		return
	}
	c.files = append(c.files, FileInfo{Path: abs, Name: info.Name(), Size: info.Size()})
}
