// Package scanner finds the Python files to analyze under a set of paths,
// honoring configured exclusions and .gitignore files.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/syntax"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config  *config.Config
	matcher gitignore.Matcher
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Scan expands paths into the sorted, de-duplicated list of files to
// analyze. Directories are walked; files given explicitly are kept when
// they are Python sources, even if an exclusion would skip them in a walk.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if isPython(p) {
				files = append(files, filepath.Clean(p))
			}
			continue
		}
		found, err := s.ScanDir(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		files = append(files, found...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

func isPython(path string) bool {
	return parser.DetectLanguage(path) == syntax.LangPython
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds the matcher for root from the config patterns
// and, when enabled, every .gitignore of the enclosing repository. Patterns
// read from the repository are rebased onto root.
func (s *Scanner) loadExcludePatterns(root string) {
	var patterns []gitignore.Pattern

	// Config patterns are parsed as gitignore syntax
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}

	if s.config.Exclude.Gitignore {
		if absRoot, err := filepath.Abs(root); err == nil {
			if gitRoot := findGitRoot(absRoot); gitRoot != "" {
				if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
					patterns = append(patterns, rebase(gitPatterns, gitRoot, absRoot)...)
				}
			}
		}
	}

	s.matcher = nil
	if len(patterns) > 0 {
		s.matcher = gitignore.NewMatcher(patterns)
	}
}

// rebase adapts patterns read at gitRoot to paths relative to root.
func rebase(patterns []gitignore.Pattern, gitRoot, root string) []gitignore.Pattern {
	rel, err := filepath.Rel(gitRoot, root)
	if err != nil || rel == "." {
		return patterns
	}
	prefix := strings.Split(filepath.ToSlash(rel), "/")
	out := make([]gitignore.Pattern, len(patterns))
	for i, p := range patterns {
		out[i] = prefixed{Pattern: p, prefix: prefix}
	}
	return out
}

// prefixed matches a pattern against the path as seen from the git root.
type prefixed struct {
	gitignore.Pattern
	prefix []string
}

func (p prefixed) Match(path []string, isDir bool) gitignore.MatchResult {
	full := make([]string, 0, len(p.prefix)+len(path))
	full = append(full, p.prefix...)
	full = append(full, path...)
	return p.Pattern.Match(full, isDir)
}

// isExcluded checks if a path matches any exclusion pattern.
func (s *Scanner) isExcluded(path string, isDir bool) bool {
	if s.matcher == nil {
		return false
	}
	return s.matcher.Match(strings.Split(filepath.ToSlash(path), "/"), isDir)
}

// ScanDir recursively scans a directory for Python files.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	// Resolve root to absolute path for security validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return nil
		}

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(relPath, false) || s.config.ShouldExclude(relPath) {
			return nil
		}
		if isPython(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
