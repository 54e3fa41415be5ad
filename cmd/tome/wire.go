package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/tome/internal/adapters/driven/ai"
	"github.com/custodia-labs/tome/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tome/internal/adapters/driven/rerank"
	"github.com/custodia-labs/tome/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tome/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer"
	"github.com/custodia-labs/tome/internal/adapters/driving/cli"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/core/services"
	"github.com/custodia-labs/tome/internal/extractors"
	"github.com/custodia-labs/tome/internal/logger"
	"github.com/custodia-labs/tome/internal/postprocessors"
)

// memoryCacheSize bounds the in-process embedding cache of the memory backend.
const memoryCacheSize = 10000

// storage is the index, job store and cache of one backend.
type storage struct {
	index driven.Index
	jobs  driven.JobStore
	cache driven.EmbeddingCache
	close func() error
}

// bootstrap builds the services for one command run.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func() error, error) {
	configStore, err := openConfigStore(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	return build(ctx, settingsService, settings)
}

func openConfigStore(path string) (*file.ConfigStore, error) {
	if path != "" {
		return file.OpenConfigStore(path)
	}
	return file.NewConfigStore("")
}

// build wires the core from resolved settings. Settings stay usable even
// when the embedding provider is misconfigured, so that it can be fixed
// with "tome config set"; search then falls back to keyword matching and
// ingestion is disabled. Ingestion jobs are cancelled when ctx ends.
func build(ctx context.Context, settingsService *services.SettingsService, settings *domain.Settings) (*cli.Services, func() error, error) {
	store, err := openStorage(settings)
	if err != nil {
		return nil, nil, err
	}

	tok, err := tokenizer.New(settings.Tokenizer)
	if err != nil {
		return nil, nil, errors.Join(err, store.close())
	}
	classifier, err := postprocessors.NewDefaultRegistry().Build(settings.Classifier, nil)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("classifier: %w", err), store.close())
	}

	var embedder *services.Embedder
	runtime, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err == nil {
		embedder, err = services.NewEmbedder(store.cache, tok, runtime)
	}
	if err != nil {
		logger.Warn("embedding unavailable, search is keyword-only: %v", err)
		embedder = nil
	}

	var reranker driven.Reranker
	if settings.Search.Rerank {
		reranker = rerank.NewHeuristic()
	}

	svcs := &cli.Services{
		Retrieval: services.NewRetrievalService(store.index, embedder, reranker, settings.Search, settings.Embedding.Defaults),
		Settings:  settingsService,
	}

	registry := extractors.NewDefaultRegistry()
	svcs.Supports = registry.Supports

	var ingestion *services.IngestionService
	if embedder != nil {
		ingestion = services.NewIngestionService(
			store.jobs, registry, classifier, embedder, store.index,
			services.WithChunkTokenizer(tok),
			services.WithIndexPolicy(settings.Index.Timeout, settings.Index.MaxRetries),
			services.WithJobContext(ctx),
		)
		svcs.Ingestion = ingestion
	}

	cleanup := func() error {
		if ingestion != nil {
			ingestion.Close()
		}
		return store.close()
	}
	return svcs, cleanup, nil
}

func openStorage(settings *domain.Settings) (*storage, error) {
	switch settings.Index.Backend {
	case domain.IndexBackendMemory:
		return &storage{
			index: memory.NewIndex(),
			jobs:  memory.NewJobStore(),
			cache: memory.NewEmbeddingCache(memoryCacheSize),
			close: func() error { return nil },
		}, nil
	case domain.IndexBackendSQLite, "":
		dataDir := settings.DataDir
		if dataDir == "" {
			dir, err := file.DefaultDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(dir, "data")
		}
		st, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		logger.Debug("Index: %s", st.Path())
		return &storage{
			index: st.Index(),
			jobs:  st.JobStore(),
			cache: st.EmbeddingCache(),
			close: st.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: index backend %q", domain.ErrUnsupportedType, settings.Index.Backend)
	}
}
