package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/postprocessors/classifier"
)

// defaultChain is the member list of a chain built without configuration.
var defaultChain = []string{classifier.HintName, classifier.HeuristicName}

// RegisterDefaults registers all built-in classifiers with the registry.
// Call this during application initialisation to enable standard strategies.
func RegisterDefaults(r *Registry) {
	r.Register(classifier.HeuristicName, buildHeuristic)
	r.Register(classifier.HintName, buildHint)
	r.Register(ChainName, buildChain)
}

// NewDefaultRegistry returns a registry with the built-in classifiers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

func buildHeuristic(_ *Registry, _ map[string]any) (driven.Classifier, error) {
	return classifier.NewHeuristic(), nil
}

func buildHint(_ *Registry, _ map[string]any) (driven.Classifier, error) {
	return classifier.NewHint(), nil
}

// buildChain creates a chain classifier from generic config.
// Supported config keys:
//   - strategies ([]string): Member strategy names in order (default: hint, heuristic)
func buildChain(r *Registry, cfg map[string]any) (driven.Classifier, error) {
	names := getStringSliceFromConfig(cfg, "strategies")
	if len(names) == 0 {
		names = defaultChain
	}

	chain := NewChain()
	for _, name := range names {
		if name == ChainName {
			return nil, fmt.Errorf("%w: chain cannot contain itself", domain.ErrInvalidInput)
		}
		member, err := r.Build(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("chain member %s: %w", name, err)
		}
		chain.Add(member)
	}
	return chain, nil
}

// getStringSliceFromConfig safely extracts a string slice from generic config map.
// Handles []string and []any types that may come from TOML/JSON parsing.
func getStringSliceFromConfig(cfg map[string]any, key string) []string {
	val, ok := cfg[key]
	if !ok {
		return nil
	}

	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
