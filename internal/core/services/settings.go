package services

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir    = "storage.data_dir"
	keyTokenizer  = "chunking.tokenizer"
	keyClassifier = "classifier.strategy"

	keyIndexBackend = "index.backend"
	keyIndexTimeout = "index.timeout_seconds"
	keyIndexRetries = "index.max_retries"

	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDims         = "embedding.dimensions"
	keyEmbedRate         = "embedding.requests_per_second"
	keyEmbedBatchSize    = "embedding.batch_size"
	keyEmbedConcurrency  = "embedding.max_concurrent_batches"
	keyEmbedRetries      = "embedding.max_retries"
	keyEmbedNormalize    = "embedding.normalize"
	keyEmbedTimeout      = "embedding.timeout_seconds"
	keyEmbedMaxSeqTokens = "embedding.max_sequence_tokens"

	keyChunkSize      = "chunking.chunk_size"
	keyChunkOverlap   = "chunking.overlap"
	keyPreserveTables = "chunking.preserve_tables"
	keyPreserveSpells = "chunking.preserve_spells"
	keyPreserveFeats  = "chunking.preserve_feats"
	keySemantic       = "chunking.semantic_chunking"
	keyBoundaryWindow = "chunking.boundary_window"

	keyMinTextLength   = "extraction.min_text_length"
	keyMergeHyphenated = "extraction.merge_hyphenated"
	keyCleanHeaders    = "extraction.clean_headers_footers"
	keyExtractTables   = "extraction.extract_tables"

	keySearchFusion     = "search.fusion"
	keyVectorWeight     = "search.vector_weight"
	keyKeywordWeight    = "search.keyword_weight"
	keyRRFK             = "search.rrf_k"
	keyRerank           = "search.rerank"
	keyRerankCandidates = "search.rerank_candidates"
	keyTopK             = "search.top_k"
	keyLimit            = "search.limit"
	keyScoreThreshold   = "search.score_threshold"
	keyQueryTimeout     = "search.query_timeout_seconds"
	keySearchRetries    = "search.max_retries"
)

// Environment variables that override the config file.
const (
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvDataDir    = "TOME_DATA_DIR"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKeys lists every recognised key with its value type and, for
// enumerations, the accepted values.
var settingKeys = map[string]struct {
	kind    valueKind
	choices []string
}{
	keyDataDir:    {kind: kindString},
	keyTokenizer:  {kindString, []string{"whitespace", "cl100k_base"}},
	keyClassifier: {kindString, []string{"heuristic", "hint", "chain"}},

	keyIndexBackend: {kindString, []string{string(domain.IndexBackendSQLite), string(domain.IndexBackendMemory)}},
	keyIndexTimeout: {kind: kindInt},
	keyIndexRetries: {kind: kindInt},

	keyEmbedProvider: {kindString, []string{
		string(domain.AIProviderHashing), string(domain.AIProviderOllama), string(domain.AIProviderOpenAI),
	}},
	keyEmbedModel:        {kind: kindString},
	keyEmbedBaseURL:      {kind: kindString},
	keyEmbedAPIKey:       {kind: kindString},
	keyEmbedDims:         {kind: kindInt},
	keyEmbedRate:         {kind: kindFloat},
	keyEmbedBatchSize:    {kind: kindInt},
	keyEmbedConcurrency:  {kind: kindInt},
	keyEmbedRetries:      {kind: kindInt},
	keyEmbedNormalize:    {kind: kindBool},
	keyEmbedTimeout:      {kind: kindInt},
	keyEmbedMaxSeqTokens: {kind: kindInt},

	keyChunkSize:      {kind: kindInt},
	keyChunkOverlap:   {kind: kindInt},
	keyPreserveTables: {kind: kindBool},
	keyPreserveSpells: {kind: kindBool},
	keyPreserveFeats:  {kind: kindBool},
	keySemantic:       {kind: kindBool},
	keyBoundaryWindow: {kind: kindInt},

	keyMinTextLength:   {kind: kindInt},
	keyMergeHyphenated: {kind: kindBool},
	keyCleanHeaders:    {kind: kindBool},
	keyExtractTables:   {kind: kindBool},

	keySearchFusion: {kindString, []string{
		string(domain.FusionWeighted), string(domain.FusionRRF), string(domain.FusionMax),
	}},
	keyVectorWeight:     {kind: kindFloat},
	keyKeywordWeight:    {kind: kindFloat},
	keyRRFK:             {kind: kindInt},
	keyRerank:           {kind: kindBool},
	keyRerankCandidates: {kind: kindInt},
	keyTopK:             {kind: kindInt},
	keyLimit:            {kind: kindInt},
	keyScoreThreshold:   {kind: kindFloat},
	keyQueryTimeout:     {kind: kindInt},
	keySearchRetries:    {kind: kindInt},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings. Unset keys take their
// defaults; environment variables override the stored API key, Ollama
// host and data directory.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		DataDir:    s.getString(keyDataDir, s.defaultDataDir()),
		Tokenizer:  s.getString(keyTokenizer, d.Tokenizer),
		Classifier: s.getString(keyClassifier, d.Classifier),
		Index: domain.IndexSettings{
			Backend:    domain.IndexBackend(s.getString(keyIndexBackend, string(d.Index.Backend))),
			Timeout:    s.getSeconds(keyIndexTimeout, d.Index.Timeout),
			MaxRetries: s.getInt(keyIndexRetries, d.Index.MaxRetries),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(d.Embedding.Provider),
			BaseURL:           s.getString(keyEmbedBaseURL, ""),
			APIKey:            s.getString(keyEmbedAPIKey, ""),
			RequestsPerSecond: s.getFloat(keyEmbedRate, d.Embedding.RequestsPerSecond),
			Defaults: domain.EmbeddingConfig{
				BatchSize:            s.getInt(keyEmbedBatchSize, d.Embedding.Defaults.BatchSize),
				MaxConcurrentBatches: s.getInt(keyEmbedConcurrency, d.Embedding.Defaults.MaxConcurrentBatches),
				MaxRetries:           s.getInt(keyEmbedRetries, d.Embedding.Defaults.MaxRetries),
				Normalize:            s.getBool(keyEmbedNormalize, d.Embedding.Defaults.Normalize),
				MaxSequenceTokens:    s.getInt(keyEmbedMaxSeqTokens, d.Embedding.Defaults.MaxSequenceTokens),
				Timeout:              s.getSeconds(keyEmbedTimeout, d.Embedding.Defaults.Timeout),
				InitialBackoff:       d.Embedding.Defaults.InitialBackoff,
			},
		},
		Search: domain.SearchSettings{
			Fusion:           domain.FusionStrategy(s.getString(keySearchFusion, string(d.Search.Fusion))),
			VectorWeight:     s.getFloat(keyVectorWeight, d.Search.VectorWeight),
			KeywordWeight:    s.getFloat(keyKeywordWeight, d.Search.KeywordWeight),
			RRFK:             s.getInt(keyRRFK, d.Search.RRFK),
			Rerank:           s.getBool(keyRerank, d.Search.Rerank),
			RerankCandidates: s.getInt(keyRerankCandidates, d.Search.RerankCandidates),
			TopK:             s.getInt(keyTopK, d.Search.TopK),
			Limit:            s.getInt(keyLimit, d.Search.Limit),
			ScoreThreshold:   s.getFloat(keyScoreThreshold, d.Search.ScoreThreshold),
			QueryTimeout:     s.getSeconds(keyQueryTimeout, d.Search.QueryTimeout),
			MaxRetries:       s.getInt(keySearchRetries, d.Search.MaxRetries),
		},
		Chunking: domain.ChunkConfig{
			Size:           s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap:        s.getInt(keyChunkOverlap, d.Chunking.Overlap),
			PreserveTables: s.getBool(keyPreserveTables, d.Chunking.PreserveTables),
			PreserveSpells: s.getBool(keyPreserveSpells, d.Chunking.PreserveSpells),
			PreserveFeats:  s.getBool(keyPreserveFeats, d.Chunking.PreserveFeats),
			Semantic:       s.getBool(keySemantic, d.Chunking.Semantic),
			BoundaryWindow: s.getInt(keyBoundaryWindow, d.Chunking.BoundaryWindow),
		},
		Extraction: domain.ExtractionConfig{
			MinTextLength:       s.getInt(keyMinTextLength, d.Extraction.MinTextLength),
			MergeHyphenated:     s.getBool(keyMergeHyphenated, d.Extraction.MergeHyphenated),
			CleanHeadersFooters: s.getBool(keyCleanHeaders, d.Extraction.CleanHeadersFooters),
			ExtractTables:       s.getBool(keyExtractTables, d.Extraction.ExtractTables),
		},
	}

	// Model and dimensions follow the provider unless set explicitly.
	emb := &settings.Embedding
	emb.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[emb.Provider])
	emb.Dimensions = s.getInt(keyEmbedDims, 0)
	if emb.Dimensions == 0 && emb.Provider == domain.AIProviderHashing {
		emb.Dimensions = d.Embedding.Dimensions
	}

	if v, ok := s.lookupEnv(EnvDataDir); ok && v != "" {
		settings.DataDir = v
	}
	switch emb.Provider {
	case domain.AIProviderOpenAI:
		if v, ok := s.lookupEnv(EnvOpenAIKey); ok && v != "" {
			emb.APIKey = v
		}
	case domain.AIProviderOllama:
		if v, ok := s.lookupEnv(EnvOllamaHost); ok && v != "" {
			emb.BaseURL = v
		}
	}

	return settings, nil
}

// Set stores a single setting, converting value to the key's type.
func (s *SettingsService) Set(key, value string) error {
	spec, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)
	if len(spec.choices) > 0 && !slices.Contains(spec.choices, value) {
		return fmt.Errorf("%w: %s must be one of %s", domain.ErrInvalidInput, key, strings.Join(spec.choices, ", "))
	}

	var typed any
	switch spec.kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		typed = int64(n)
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		typed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		typed = b
	default:
		typed = value
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored setting.
func (s *SettingsService) Unset(key string) error {
	if _, ok := settingKeys[key]; !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Unset(key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// Keys lists every recognised setting key in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns the effective value of every setting key, rendered as
// text. API keys are masked.
func (s *SettingsService) Values() (map[string]string, error) {
	st, err := s.Get()
	if err != nil {
		return nil, err
	}
	itoa := strconv.Itoa
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	btoa := strconv.FormatBool
	secs := func(d time.Duration) string { return itoa(int(d / time.Second)) }

	emb := st.Embedding
	return map[string]string{
		keyDataDir:    st.DataDir,
		keyTokenizer:  st.Tokenizer,
		keyClassifier: st.Classifier,

		keyIndexBackend: string(st.Index.Backend),
		keyIndexTimeout: secs(st.Index.Timeout),
		keyIndexRetries: itoa(st.Index.MaxRetries),

		keyEmbedProvider:     emb.Provider.String(),
		keyEmbedModel:        emb.Model,
		keyEmbedBaseURL:      emb.BaseURL,
		keyEmbedAPIKey:       maskSecret(emb.APIKey),
		keyEmbedDims:         itoa(emb.Dimensions),
		keyEmbedRate:         ftoa(emb.RequestsPerSecond),
		keyEmbedBatchSize:    itoa(emb.Defaults.BatchSize),
		keyEmbedConcurrency:  itoa(emb.Defaults.MaxConcurrentBatches),
		keyEmbedRetries:      itoa(emb.Defaults.MaxRetries),
		keyEmbedNormalize:    btoa(emb.Defaults.Normalize),
		keyEmbedTimeout:      secs(emb.Defaults.Timeout),
		keyEmbedMaxSeqTokens: itoa(emb.Defaults.MaxSequenceTokens),

		keyChunkSize:      itoa(st.Chunking.Size),
		keyChunkOverlap:   itoa(st.Chunking.Overlap),
		keyPreserveTables: btoa(st.Chunking.PreserveTables),
		keyPreserveSpells: btoa(st.Chunking.PreserveSpells),
		keyPreserveFeats:  btoa(st.Chunking.PreserveFeats),
		keySemantic:       btoa(st.Chunking.Semantic),
		keyBoundaryWindow: itoa(st.Chunking.BoundaryWindow),

		keyMinTextLength:   itoa(st.Extraction.MinTextLength),
		keyMergeHyphenated: btoa(st.Extraction.MergeHyphenated),
		keyCleanHeaders:    btoa(st.Extraction.CleanHeadersFooters),
		keyExtractTables:   btoa(st.Extraction.ExtractTables),

		keySearchFusion:     st.Search.Fusion.String(),
		keyVectorWeight:     ftoa(st.Search.VectorWeight),
		keyKeywordWeight:    ftoa(st.Search.KeywordWeight),
		keyRRFK:             itoa(st.Search.RRFK),
		keyRerank:           btoa(st.Search.Rerank),
		keyRerankCandidates: itoa(st.Search.RerankCandidates),
		keyTopK:             itoa(st.Search.TopK),
		keyLimit:            itoa(st.Search.Limit),
		keyScoreThreshold:   ftoa(st.Search.ScoreThreshold),
		keyQueryTimeout:     secs(st.Search.QueryTimeout),
		keySearchRetries:    itoa(st.Search.MaxRetries),
	}, nil
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	d := domain.DefaultSettings()
	d.DataDir = s.defaultDataDir()
	return d
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// defaultDataDir places data next to the config file.
func (s *SettingsService) defaultDataDir() string {
	path := s.configStore.Path()
	if !filepath.IsAbs(path) {
		return ""
	}
	return filepath.Join(filepath.Dir(path), "data")
}

// Stored values come back in whatever type the store decoded; a value of
// the wrong type reads as unset.

func (s *SettingsService) getString(key, defaultVal string) string {
	if v, ok := s.configStore.Get(key); ok {
		if str, ok := v.(string); ok && str != "" {
			return str
		}
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	v, _ := s.configStore.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	v, _ := s.configStore.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if v, ok := s.configStore.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return time.Duration(s.getInt(key, 0)) * time.Second
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.getString(keyEmbedProvider, ""))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
