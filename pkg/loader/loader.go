package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Extraction is the plain text pulled out of one raw document.
type Extraction struct {
	Text      string
	PageCount int
}

// Extractor turns the raw bytes of one document format into text.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (Extraction, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, content []byte) (Extraction, error)

func (f ExtractorFunc) Extract(ctx context.Context, content []byte) (Extraction, error) {
	return f(ctx, content)
}

// Registry dispatches extraction by file extension. Concurrent requests for
// identical content share one extraction.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	group      singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// Register binds an extractor to one or more extensions. Extensions are
// matched case-insensitively and without the leading dot.
func (r *Registry) Register(e Extractor, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.extractors[NormalizeExt(ext)] = e
	}
}

// Supports reports whether an extractor is registered for ext.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[NormalizeExt(ext)]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Extract runs the extractor registered for fileName's extension.
func (r *Registry) Extract(ctx context.Context, fileName string, content []byte) (Extraction, error) {
	ext := Ext(fileName)

	r.mu.RLock()
	e, ok := r.extractors[ext]
	r.mu.RUnlock()
	if !ok {
		return Extraction{}, fmt.Errorf("no extractor registered for %q", ext)
	}

	sum := sha256.Sum256(content)
	key := ext + ":" + hex.EncodeToString(sum[:])

	res, err, _ := r.group.Do(key, func() (any, error) {
		return e.Extract(ctx, content)
	})
	if err != nil {
		return Extraction{}, err
	}
	return res.(Extraction), nil
}

// Ext returns the lowercased extension of fileName without the dot.
func Ext(fileName string) string {
	return NormalizeExt(filepath.Ext(fileName))
}

// NormalizeExt lowercases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}
