// Package loader resolves and loads template and component sources. The
// compiler only sees this interface; the filesystem rules live in the
// default implementation.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stencil-go/packages/compiler/src/config"
)

// SourceLoader locates template and component sources
type SourceLoader interface {
	// Load reads a template source by canonical path, returning the source
	// and the suffix-resolved path actually read.
	Load(path string) (string, string, error)
	// Resolve canonicalizes a path referenced from a referrer template
	Resolve(path, referrer string) string
	// LoadComponent locates a component source by logical name, returning
	// the source and the resolved path.
	LoadComponent(name string) (string, string, error)
	// Exists reports whether a canonical path resolves to a source
	Exists(path string) bool
	// ModTime returns the source's modification time in unix seconds
	ModTime(path string) (int64, error)
}

// FilesystemLoader implements SourceLoader over a root directory.
//
// Path rules: absolute paths normalize as-is; relative paths resolve against
// the referrer's directory; "." and ".." segments collapse; repeated
// separators collapse; when a candidate path is missing, the configured
// default suffix is appended and the lookup retried once.
type FilesystemLoader struct {
	root string
	opts *config.Options
}

// NewFilesystemLoader creates a loader rooted at the given directory
func NewFilesystemLoader(root string, opts *config.Options) *FilesystemLoader {
	return &FilesystemLoader{root: root, opts: opts}
}

// Resolve canonicalizes a referenced path
func (l *FilesystemLoader) Resolve(path, referrer string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	base := l.root
	if referrer != "" {
		base = filepath.Dir(referrer)
	}
	return filepath.Clean(filepath.Join(base, path))
}

// withSuffix returns the existing variant of a candidate path: the path as
// written, or with the default suffix appended, retried once.
func (l *FilesystemLoader) withSuffix(path string) (string, bool) {
	if fileExists(path) {
		return path, true
	}
	if !strings.HasSuffix(path, l.opts.DefaultSuffix) {
		retry := path + l.opts.DefaultSuffix
		if fileExists(retry) {
			return retry, true
		}
	}
	return path, false
}

// Load reads a template source, returning it with the path actually read
func (l *FilesystemLoader) Load(path string) (string, string, error) {
	resolved, ok := l.withSuffix(l.Resolve(path, ""))
	if !ok {
		return "", "", fmt.Errorf("template %q does not exist", path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", "", fmt.Errorf("loading template %s: %w", resolved, err)
	}
	return string(data), resolved, nil
}

// Exists reports whether a path resolves to a source file
func (l *FilesystemLoader) Exists(path string) bool {
	_, ok := l.withSuffix(l.Resolve(path, ""))
	return ok
}

// ModTime returns the source modification time in unix seconds
func (l *FilesystemLoader) ModTime(path string) (int64, error) {
	resolved, ok := l.withSuffix(l.Resolve(path, ""))
	if !ok {
		return 0, fmt.Errorf("template %q does not exist", path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}

// LoadComponent searches the configured component directories for a
// component source by logical name.
func (l *FilesystemLoader) LoadComponent(name string) (string, string, error) {
	for _, dir := range l.opts.ComponentDirs {
		candidate := l.Resolve(filepath.Join(dir, name), "")
		resolved, ok := l.withSuffix(candidate)
		if !ok {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return "", "", fmt.Errorf("loading component %s: %w", resolved, err)
		}
		return string(data), resolved, nil
	}
	return "", "", fmt.Errorf("component %q not found in %v", name, l.opts.ComponentDirs)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
