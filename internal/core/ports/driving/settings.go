package driving

import "github.com/custodia-labs/tome/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, falling back to defaults
	// for anything not configured.
	Get() (*domain.Settings, error)

	// Set stores a single setting by dotted key (e.g. "search.fusion").
	Set(key, value string) error

	// Unset removes a stored setting so it falls back to its default.
	Unset(key string) error

	// Keys lists every recognised setting key.
	Keys() []string

	// Values returns the effective value of every key as text, with
	// secrets masked.
	Values() (map[string]string, error)

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error
}
