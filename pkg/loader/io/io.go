package io

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bio-nexus/backend/pkg/loader"
)

// File is one document read from the local filesystem.
type File struct {
	Path    string
	Name    string
	Content []byte
}

// FileSource collects documents from local paths.
type FileSource struct {
	// Extensions restricts Walk to these extensions. Empty means all files.
	Extensions []string
}

// NewFileSource creates a source limited to the given extensions.
func NewFileSource(exts []string) *FileSource {
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		norm = append(norm, loader.NormalizeExt(e))
	}
	return &FileSource{Extensions: norm}
}

// Walk expands the given paths into a sorted list of file paths.
// Directories are walked recursively and hidden entries are skipped.
func (s *FileSource) Walk(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && len(d.Name()) > 0 && d.Name()[0] == '.' {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.accepts(path) {
				return nil
			}
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Read loads a single file.
func (s *FileSource) Read(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Name: filepath.Base(path), Content: content}, nil
}

func (s *FileSource) accepts(path string) bool {
	if len(s.Extensions) == 0 {
		return true
	}
	return slices.Contains(s.Extensions, loader.Ext(path))
}
