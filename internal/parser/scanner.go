package parser

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/includeguard/includeguard/internal/config"
	incerrors "github.com/includeguard/includeguard/internal/errors"
	"github.com/includeguard/includeguard/internal/types"
)

// Scanner walks a project tree and parses every matching C/C++ file.
// Per-file read failures are logged and skipped; only a failure to walk the
// root itself is reported as an error.
type Scanner struct {
	parser    *Parser
	cfg       *config.Config
	gitignore *ignore.GitIgnore
}

// NewScanner creates a scanner for the configured project root.
func NewScanner(cfg *config.Config) *Scanner {
	s := &Scanner{
		parser: New(cfg.Project.Root, cfg.Scan.IncludePaths),
		cfg:    cfg,
	}

	if cfg.Scan.RespectGitignore {
		giPath := filepath.Join(cfg.Project.Root, ".gitignore")
		if _, err := os.Stat(giPath); err == nil {
			gi, err := ignore.CompileIgnoreFile(giPath)
			if err != nil {
				log.Warnf("cannot parse %s: %v", giPath, err)
			} else {
				s.gitignore = gi
			}
		}
	}

	return s
}

// Parser returns the underlying file parser.
func (s *Scanner) Parser() *Parser {
	return s.parser
}

// ScanProject parses all matching files under the project root.
// Parsing fans out over a bounded worker pool; results are returned sorted
// by path so output is deterministic regardless of completion order.
func (s *Scanner) ScanProject(ctx context.Context) ([]*types.FileAnalysis, error) {
	paths, err := s.collectFiles()
	if err != nil {
		return nil, incerrors.NewScanError("walk", s.parser.projectRoot, err)
	}

	log.Debugf("scanning %d files under %s", len(paths), s.parser.projectRoot)

	var (
		mu       sync.Mutex
		analyses []*types.FileAnalysis
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			analysis, err := s.parser.ParseFile(path)
			if err != nil {
				// Soft failure: one unreadable file must not abort
				// the whole-project scan.
				log.Warnf("could not read %s: %v", path, err)
				return nil
			}
			mu.Lock()
			analyses = append(analyses, analysis)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, incerrors.NewScanError("parse", s.parser.projectRoot, err)
	}

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].Filepath < analyses[j].Filepath
	})

	log.Debugf("parsed %d files", len(analyses))
	return analyses, nil
}

// ShouldScan reports whether a path would be picked up by ScanProject.
// Exposed for the watcher so file events use the same filtering rules.
func (s *Scanner) ShouldScan(path string) bool {
	if !s.matchesExtension(path) {
		return false
	}

	rel, err := filepath.Rel(s.parser.projectRoot, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if s.isExcludedDir(part) {
			return false
		}
	}
	return !s.isExcludedPath(rel)
}

func (s *Scanner) collectFiles() ([]string, error) {
	var paths []string

	err := filepath.WalkDir(s.parser.projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries are skipped, not fatal.
			log.Warnf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != s.parser.projectRoot && s.isExcludedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		if !s.matchesExtension(path) {
			return nil
		}

		rel, relErr := filepath.Rel(s.parser.projectRoot, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if s.isExcludedPath(rel) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

func (s *Scanner) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.cfg.Scan.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isExcludedDir matches directory names by path component equality,
// not substring.
func (s *Scanner) isExcludedDir(name string) bool {
	for _, d := range s.cfg.Scan.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

// isExcludedPath applies glob excludes and gitignore rules to a
// slash-separated path relative to the project root.
func (s *Scanner) isExcludedPath(rel string) bool {
	for _, pattern := range s.cfg.Scan.Exclude {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	if s.gitignore != nil && s.gitignore.MatchesPath(rel) {
		return true
	}
	return false
}

func (s *Scanner) workers() int {
	if s.cfg.Performance.Workers > 0 {
		return s.cfg.Performance.Workers
	}
	return 1
}
