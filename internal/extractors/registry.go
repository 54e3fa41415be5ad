package extractors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps formats and file extensions to extractors.
type Registry struct {
	mu         sync.RWMutex
	formats    map[string]driven.Extractor
	extensions map[string]driven.Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		formats:    make(map[string]driven.Extractor),
		extensions: make(map[string]driven.Extractor),
	}
}

// Register adds an extractor under its name and the given file extensions.
// Extensions are matched case-insensitively, with or without a leading dot.
func (r *Registry) Register(e driven.Extractor, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.formats[strings.ToLower(e.Name())] = e
	for _, ext := range extensions {
		r.extensions[normaliseExt(ext)] = e
	}
}

// For returns the extractor named by doc.Format, or the one registered for
// the URI's extension when no format is given.
func (r *Registry) For(doc domain.DocumentRef) (driven.Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if format := strings.ToLower(strings.TrimSpace(doc.Format)); format != "" {
		if e, ok := r.formats[format]; ok {
			return e, nil
		}
		if e, ok := r.extensions[normaliseExt(format)]; ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrUnsupportedType, doc.Format)
	}

	ext := normaliseExt(filepath.Ext(doc.URI))
	if ext == "" {
		return nil, fmt.Errorf("%w: cannot infer format of %q", domain.ErrUnsupportedType, doc.URI)
	}
	if e, ok := r.extensions[ext]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: no extractor for .%s files", domain.ErrUnsupportedType, ext)
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the registered file extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether a path has a registered extension.
func (r *Registry) Supports(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.extensions[normaliseExt(filepath.Ext(path))]
	return ok
}

func normaliseExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
