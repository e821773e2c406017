package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/testforge/internal/adapters/driven/ai"
	"github.com/custodia-labs/testforge/internal/adapters/driven/config/file"
	"github.com/custodia-labs/testforge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/testforge/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/testforge/internal/adapters/driving/cli"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/core/services"
	"github.com/custodia-labs/testforge/internal/logger"
	"github.com/custodia-labs/testforge/internal/normalisers"
	"github.com/custodia-labs/testforge/internal/postprocessors"
)

// bootstrap composes the driven adapters and core services.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	home := opts.Home
	if home == "" && !opts.Ephemeral {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		home = dir
	}

	var (
		configStore driven.ConfigStore
		prompts     driven.PromptStore
		store       driven.SnapshotStore
		closers     []func() error
	)

	if opts.Ephemeral {
		logger.Debug("Ephemeral mode: settings and snapshots stay in memory")
		configStore = memory.NewConfigStore(nil)
		store = memory.NewSnapshotStore()
	} else {
		fileConfig, err := file.NewConfigStore(home)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		configStore = fileConfig

		promptStore, err := file.NewPromptStore(filepath.Join(home, "prompts"))
		if err != nil {
			return nil, fmt.Errorf("opening prompts: %w", err)
		}
		prompts = promptStore

		db, err := sqlite.NewStore(filepath.Join(home, "data"))
		if err != nil {
			return nil, fmt.Errorf("opening snapshot store: %w", err)
		}
		store = db
		closers = append(closers, db.Close)
	}

	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := settingsSvc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	// An unusable LLM leaves generation unavailable but indexing intact.
	var warnings []string
	aiResult, err := ai.Initialise(ctx, *settings)
	if err != nil {
		warnings = append(warnings, err.Error())
		aiResult = &ai.InitResult{LexicalOnly: true}
		if embedder, embErr := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding); embErr == nil {
			aiResult.EmbeddingService = embedder
			aiResult.LexicalOnly = embedder == nil
		}
	}
	warnings = append(warnings, aiResult.Warnings...)
	closers = append(closers, func() error {
		aiResult.Close()
		return nil
	})

	registry := normalisers.NewDefaultRegistry()
	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		return nil, fmt.Errorf("building chunk pipeline: %w", err)
	}

	indexer := services.NewIndexer(aiResult.EmbeddingService, settings.Chunking.Size)
	indexSvc := services.NewIndexService(registry, pipeline, indexer, store, settings.Chunking)
	if err := indexSvc.Restore(ctx); err != nil {
		warnings = append(warnings, fmt.Sprintf("previous index not restored: %v", err))
	}

	retriever := services.NewRetriever(aiResult.EmbeddingService)
	generator := services.NewGenerationService(aiResult.LLMService, aiResult.EmbeddingService, prompts, settings.Generation)
	authoring := services.NewAuthoringService(indexSvc, retriever, generator, *settings)

	return &cli.Services{
		Authoring: authoring,
		Index:     indexSvc,
		Settings:  settingsSvc,
		Accept:    registry.Accepts,
		Warnings:  warnings,
		Close: func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			return errors.Join(errs...)
		},
	}, nil
}
