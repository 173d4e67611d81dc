// Package sources enumerates ingestion inputs: explicit file lists, globs
// over a directory tree, and S3 prefixes.
package sources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/markdave123-py/ksync/internal/core"
)

// LocalSource reads files from the local filesystem.
type LocalSource struct {
	paths []string
}

var _ core.FileSource = (*LocalSource)(nil)

func NewLocalSource(paths []string) *LocalSource {
	return &LocalSource{paths: paths}
}

func (s *LocalSource) List(context.Context) ([]string, error) {
	return s.paths, nil
}

func (s *LocalSource) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ErrOutsideRoot is returned by Confine for paths that resolve outside the
// ingest root.
var ErrOutsideRoot = errors.New("path outside ingest root")

// Confine resolves path against root, following symlinks, and returns it
// joined onto root in the form Glob produces. Relative paths are taken
// relative to root. The file must exist.
func Confine(root, path string) (string, error) {
	realRoot, err := resolve(root)
	if err != nil {
		return "", fmt.Errorf("ingest root: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	real, err := resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(realRoot, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if rel == "." {
		return "", fmt.Errorf("%s is the ingest root, not a file", path)
	}
	return filepath.Join(root, rel), nil
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// ReadListFile reads one path per line. Blank lines and lines starting with
// '#' are ignored.
func ReadListFile(listPath string) ([]string, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, filepath.Clean(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read file list: %w", err)
	}
	return out, nil
}

// Glob expands pattern (which may contain **) under root and returns the
// matching regular files, sorted, as paths joined onto root.
func Glob(root, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(root, filepath.FromSlash(m)))
	}
	sort.Strings(out)
	return out, nil
}

// Matcher reports whether a path relative to root matches pattern.
type Matcher struct {
	root    string
	pattern string
}

func NewMatcher(root, pattern string) (*Matcher, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return &Matcher{root: root, pattern: pattern}, nil
}

func (m *Matcher) Match(path string) bool {
	if m.pattern == "" {
		return true
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	ok, err := doublestar.Match(m.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}
