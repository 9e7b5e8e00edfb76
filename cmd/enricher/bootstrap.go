package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/enricher/internal/adapters/driven/ai"
	"github.com/custodia-labs/enricher/internal/adapters/driven/config/file"
	"github.com/custodia-labs/enricher/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/enricher/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/enricher/internal/adapters/driving/cli"
	"github.com/custodia-labs/enricher/internal/connectors/filesystem"
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/services"
	"github.com/custodia-labs/enricher/internal/extractors"
	"github.com/custodia-labs/enricher/internal/hashing"
	"github.com/custodia-labs/enricher/internal/logger"
)

// stores groups the persistence ports of one backend.
type stores struct {
	registry    driven.DuplicateRegistry
	metadata    driven.MetadataStore
	deadLetters driven.DeadLetterStore
	close       func()
}

// bootstrap wires the adapters into the services the commands run against.
func bootstrap(opts cli.Options) (*cli.Services, error) {
	configStore, err := openConfigStore(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := services.LoadSettings(configStore)
	if err != nil {
		return nil, fmt.Errorf("%w. Run 'enricher settings' to inspect the configuration", err)
	}

	st, err := openStores(settings)
	if err != nil {
		return nil, err
	}

	root, err := sourceRoot(settings.SourceRoot)
	if err != nil {
		st.close()
		return nil, err
	}
	source := filesystem.New(root)
	hasher := hashing.New()

	prompts, err := file.NewPromptStore(promptDir(opts.ConfigPath))
	if err != nil {
		st.close()
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	analyzers := ai.BuildAnalyzers(&settings.Analyzers, prompts)
	for _, w := range analyzers.Warnings {
		logger.Warn("%s", w)
	}
	logger.Debug("storage=%s source=%s analyzers=%s", settings.Storage, root, settings.Analyzers.Provider)

	pipeline, err := services.NewPipeline(services.PipelineDeps{
		Source:    source,
		Hasher:    hasher,
		Registry:  st.registry,
		Extractor: extractors.NewDefaultRegistry(source),
		Enricher:  services.NewEnricher(analyzers.Analyzers, settings.Limits, settings.Analyzers.Timeout),
		Store:     st.metadata,
		Limits:    settings.Limits,
	})
	if err != nil {
		analyzers.Close()
		st.close()
		return nil, err
	}

	return &cli.Services{
		Runner:      services.NewRunner(pipeline, st.deadLetters, settings.Retry),
		Records:     services.NewRecordService(st.metadata, st.registry, st.deadLetters),
		Settings:    settingsService,
		Source:      source,
		Hasher:      hasher,
		Concurrency: settings.Concurrency,
		Close: func() {
			analyzers.Close()
			st.close()
		},
	}, nil
}

func openConfigStore(path string) (*file.ConfigStore, error) {
	if path != "" {
		return file.NewConfigStoreFile(path)
	}
	return file.NewConfigStore("")
}

// promptDir keeps prompts next to an explicit config file.
func promptDir(configPath string) string {
	if configPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(configPath), "prompts")
}

func openStores(settings domain.Settings) (*stores, error) {
	switch settings.Storage {
	case domain.StorageMemory:
		return &stores{
			registry:    memory.NewDuplicateRegistry(),
			metadata:    memory.NewMetadataStore(),
			deadLetters: memory.NewDeadLetterStore(),
			close:       func() {},
		}, nil
	case domain.StorageSQLite:
		db, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &stores{
			registry:    db.DuplicateRegistry(),
			metadata:    db.MetadataStore(),
			deadLetters: db.DeadLetterStore(),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("closing database: %v", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, settings.Storage)
	}
}

// sourceRoot defaults to the working directory.
func sourceRoot(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving source root: %w", err)
	}
	return wd, nil
}
