package driven

// ConfigStore persists flat, dot-separated settings keys such as
// "search.limit". Values keep whatever type the backing format decoded;
// interpreting them is the caller's job.
type ConfigStore interface {
	// Get returns the raw value stored under key.
	Get(key string) (any, bool)

	// Set stores value under key and persists it.
	Set(key string, value any) error

	// Unset removes key. Removing a missing key is not an error.
	Unset(key string) error

	// Keys lists stored keys in sorted order.
	Keys() []string

	// Load replaces the in-memory values with the persisted ones.
	Load() error

	// Path identifies where values are persisted.
	Path() string
}
