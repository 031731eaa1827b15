// Package scanner discovers C source files under the paths handed to the
// CLI and the MCP server.
package scanner

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"allocguard/internal/config"
)

// Scanner recursively finds C files in directories.
type Scanner struct {
	extensions map[string]bool
	excludes   *ignore.GitIgnore
}

// NewScanner creates a file scanner from the profile's extensions and
// gitignore-style exclusion patterns.
func NewScanner(cfg *config.Config) *Scanner {
	return &Scanner{
		extensions: cfg.ExtensionSet(),
		excludes:   ignore.CompileIgnoreLines(cfg.Excludes...),
	}
}

// ScanPath scans a file or directory for C files.
func (s *Scanner) ScanPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if s.isSourceFile(path) && !s.excludes.MatchesPath(path) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		rel, relErr := filepath.Rel(path, filePath)
		if relErr != nil {
			rel = filePath
		}

		if d.IsDir() {
			if rel != "." && s.excludes.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isSourceFile(filePath) && !s.excludes.MatchesPath(rel) {
			files = append(files, filePath)
		}
		return nil
	})

	return files, err
}

// ScanPaths scans multiple paths, deduplicating by absolute path.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)

	for _, path := range paths {
		files, err := s.ScanPath(path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			absPath, err := filepath.Abs(f)
			if err != nil {
				absPath = f
			}
			if !seen[absPath] {
				seen[absPath] = true
				allFiles = append(allFiles, absPath)
			}
		}
	}

	return allFiles, nil
}

func (s *Scanner) isSourceFile(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}
