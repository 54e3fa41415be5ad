package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding runtime provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderHashing is the built-in offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Hashing (offline, built in)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// FusionStrategy names how vector and keyword scores are combined.
type FusionStrategy string

// Available fusion strategies.
const (
	// FusionWeighted is a weighted sum of normalised leg scores.
	FusionWeighted FusionStrategy = "weighted"

	// FusionRRF is reciprocal rank fusion.
	FusionRRF FusionStrategy = "rrf"

	// FusionMax keeps the highest normalised leg score.
	FusionMax FusionStrategy = "max"
)

// IsValid returns true if the strategy is recognised.
func (f FusionStrategy) IsValid() bool {
	switch f {
	case FusionWeighted, FusionRRF, FusionMax:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f FusionStrategy) String() string {
	return string(f)
}

// IndexBackend names the index implementation.
type IndexBackend string

// Available index backends.
const (
	IndexBackendSQLite IndexBackend = "sqlite"
	IndexBackendMemory IndexBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	return b == IndexBackendSQLite || b == IndexBackendMemory
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding runtime provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Only the hashing provider uses it directly.
	Dimensions int

	// RequestsPerSecond throttles remote providers. Zero disables throttling.
	RequestsPerSecond float64

	// Defaults is the embedding config applied to jobs that do not override it.
	Defaults EmbeddingConfig
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SearchSettings holds retrieval behaviour configuration.
type SearchSettings struct {
	Fusion           FusionStrategy
	VectorWeight     float64
	KeywordWeight    float64
	RRFK             int
	Rerank           bool
	RerankCandidates int
	TopK             int
	Limit            int
	ScoreThreshold   float64
	QueryTimeout     time.Duration
	MaxRetries       int
}

// IndexSettings holds index backend configuration.
type IndexSettings struct {
	Backend    IndexBackend
	Timeout    time.Duration
	MaxRetries int
}

// Settings holds all application settings.
type Settings struct {
	// DataDir is where the index and job records are stored.
	DataDir string

	// Tokenizer names the tokenizer used for chunking ("whitespace" or "cl100k_base").
	Tokenizer string

	// Classifier names the classification strategy.
	Classifier string

	Index      IndexSettings
	Embedding  EmbeddingSettings
	Search     SearchSettings
	Chunking   ChunkConfig
	Extraction ExtractionConfig
}

// DefaultSettings returns settings that work offline out of the box.
func DefaultSettings() Settings {
	return Settings{
		Tokenizer:  "whitespace",
		Classifier: "heuristic",
		Index: IndexSettings{
			Backend:    IndexBackendSQLite,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Model:      DefaultEmbeddingModels()[AIProviderHashing],
			Dimensions: 384,
			Defaults:   DefaultEmbeddingConfig(),
		},
		Search: SearchSettings{
			Fusion:           FusionWeighted,
			VectorWeight:     0.7,
			KeywordWeight:    0.3,
			RRFK:             60,
			Rerank:           true,
			RerankCandidates: 30,
			TopK:             DefaultTopK,
			Limit:            DefaultSearchLimit,
			QueryTimeout:     10 * time.Second,
			MaxRetries:       2,
		},
		Chunking:   DefaultChunkConfig(),
		Extraction: DefaultExtractionConfig(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHashing,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "hashing-384",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Built-in
		"hashing-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
