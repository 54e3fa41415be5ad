package postprocessors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// BuilderFunc creates a Classifier from generic config.
// Config is a map of strategy-specific settings parsed from user config.
type BuilderFunc func(r *Registry, cfg map[string]any) (driven.Classifier, error)

// Registry maps classification strategy names to their builders.
// It allows dynamic construction of classifiers from configuration.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new classifier registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a classifier builder to the registry.
// Name should be unique and match the classifier's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a classifier by name with the given config.
// Returns error if the strategy name is not registered.
func (r *Registry) Build(name string, cfg map[string]any) (driven.Classifier, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown classifier: %s", domain.ErrUnsupportedType, name)
	}
	return builder(r, cfg)
}

// Has returns true if a classifier with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered classifier names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
