package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

// ErrInvalidPattern indicates an include or exclude pattern could not be compiled
var ErrInvalidPattern = errors.New("invalid glob pattern")

// DefaultMaxFileBytes skips files that are too large to be hand-written source
const DefaultMaxFileBytes = 512 * 1024

// ScanConfig configures a workspace scan
type ScanConfig struct {
	Root         string
	Include      []string // Slash-separated globs matched against paths relative to Root
	Exclude      []string // Matched against relative paths of files and directories
	MaxFileBytes int64
	Concurrency  int
}

// DefaultScanConfig returns a configuration covering the supported languages
func DefaultScanConfig(root string) ScanConfig {
	return ScanConfig{
		Root:         root,
		Include:      []string{"**.go", "**.py", "**.{js,jsx,mjs,ts,tsx}", "**.java", "**.{c,h,cc,cpp,hpp}"},
		Exclude:      []string{"{.git,node_modules,vendor,dist,build}", "**/{.git,node_modules,vendor,dist,build}"},
		MaxFileBytes: DefaultMaxFileBytes,
		Concurrency:  runtime.NumCPU(),
	}
}

// Scanner walks a workspace and feeds extracted facts into a Store
type Scanner struct {
	config  ScanConfig
	include []glob.Glob
	exclude []glob.Glob
	store   *Store
	logger  *logging.Logger
}

// NewScanner compiles the configured patterns and returns a Scanner writing to store
func NewScanner(store *Store, config ScanConfig) (*Scanner, error) {
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = DefaultMaxFileBytes
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	include, err := compilePatterns(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compilePatterns(config.Exclude)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		config:  config,
		include: include,
		exclude: exclude,
		store:   store,
		logger:  logging.WithComponent("knowledge-scanner"),
	}, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Included reports whether a relative slash path passes the include and exclude filters
func (s *Scanner) Included(rel string) bool {
	if s.excluded(rel) {
		return false
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, g := range s.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Scan walks the workspace root and upserts every matching file. It returns the number
// of files scanned. Files that cannot be read are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	root := s.config.Root
	if root == "" {
		root = "."
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if s.Included(rel) && LanguageFor(path) != "" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk workspace %s: %w", root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	scanned := make([]bool, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.ScanFile(path); err != nil {
				s.logger.Warn("Failed to scan file", "path", path, "error", err)
				return nil
			}
			scanned[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, ok := range scanned {
		if ok {
			count++
		}
	}
	s.logger.Info("Workspace scan completed", "root", root, "candidates", len(paths), "scanned", count)
	return count, nil
}

// ScanFile extracts facts from a single file and upserts them
func (s *Scanner) ScanFile(path string) (FileFacts, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFacts{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > s.config.MaxFileBytes {
		return FileFacts{}, fmt.Errorf("file %s exceeds %d bytes", path, s.config.MaxFileBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileFacts{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	facts := Extract(path, string(content))
	facts.LastModified = info.ModTime()
	s.store.Upsert(facts)

	s.logger.Debug("Scanned file",
		"path", path,
		"language", facts.Language,
		"imports", len(facts.Imports),
		"functions", len(facts.Functions),
		"unused_imports", len(facts.UnusedImports),
	)
	return facts, nil
}
