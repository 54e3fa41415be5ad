package file

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// dirName is the directory under the user's home holding configuration and data.
const dirName = ".tome"

// ConfigStore persists settings to a TOML file. A key such as "search.limit"
// is written as limit under a [search] table.
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// NewConfigStore opens config.toml in configDir, or in DefaultDir when
// configDir is empty.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}
	return OpenConfigStore(filepath.Join(configDir, "config.toml"))
}

// OpenConfigStore opens the file at path, creating its directory. A missing
// file yields an empty store.
func OpenConfigStore(path string) (*ConfigStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	s := &ConfigStore{path: path, values: map[string]any{}}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultDir returns ~/.tome.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

// Get returns the decoded value under key. TOML integers decode as int64.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	return s.update(func(m map[string]any) { m[key] = value })
}

// Unset removes key and rewrites the file.
func (s *ConfigStore) Unset(key string) error {
	return s.update(func(m map[string]any) { delete(m, key) })
}

// Keys lists stored keys in sorted order.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Load rereads the file.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return err
	}
	values := map[string]any{}
	flatten(tree, "", values)

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Path returns the file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// update applies fn to a copy of the values and swaps it in only once the
// file has been written.
func (s *ConfigStore) update(fn func(map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.values)
	fn(next)
	data, err := toml.Marshal(nest(next))
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	s.values = next
	return nil
}

// flatten writes the leaves of tree into out under dotted keys.
func flatten(tree map[string]any, prefix string, out map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(sub, k, out)
			continue
		}
		out[k] = v
	}
}

// nest turns dotted keys back into tables. A key whose path runs into an
// existing leaf, or whose leaf name is already a table, is kept as a quoted
// top-level key.
func nest(flat map[string]any) map[string]any {
	keys := slices.SortedFunc(maps.Keys(flat), func(a, b string) int {
		if d := strings.Count(a, ".") - strings.Count(b, "."); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	root := map[string]any{}
	for _, key := range keys {
		parts := strings.Split(key, ".")
		table, ok := descend(root, parts[:len(parts)-1])
		leaf := parts[len(parts)-1]
		if _, taken := table[leaf]; !ok || taken {
			root[key] = flat[key]
			continue
		}
		table[leaf] = flat[key]
	}
	return root
}

// descend walks path from root, creating tables as needed. It reports false
// if a non-table value sits on the path.
func descend(root map[string]any, path []string) (map[string]any, bool) {
	table := root
	for _, name := range path {
		child, exists := table[name]
		if !exists {
			sub := map[string]any{}
			table[name] = sub
			table = sub
			continue
		}
		sub, ok := child.(map[string]any)
		if !ok {
			return nil, false
		}
		table = sub
	}
	return table, true
}
