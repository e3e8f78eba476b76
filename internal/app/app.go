// Package app wires configuration into the running pipeline components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/timmy/courtside/internal/chunker"
	"github.com/timmy/courtside/internal/config"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/repository"
	"github.com/timmy/courtside/internal/search"
	"github.com/timmy/courtside/internal/service"
	"github.com/timmy/courtside/internal/source"
	"github.com/timmy/courtside/internal/source/localdir"
	"github.com/timmy/courtside/internal/source/youtube"
	"github.com/timmy/courtside/internal/storage"
	"gorm.io/gorm"
)

// App holds every long-lived component. Build it once per process with New.
type App struct {
	Config  *config.Config
	DB      *gorm.DB
	SQL     *sql.DB
	Records *repository.WorkItemRepository
	Jobs    *repository.IngestJobRepository
	Index   search.Index
	Ingest  *service.IngestService
	Catalog *service.CatalogService
	Chat    *service.ChatService
}

// NewLogger builds the process logger from configuration and installs it as the default.
func NewLogger(cfg *config.LogConfig, serviceName string) *logger.Logger {
	log := logger.New(&logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		ServiceName: serviceName,
		Environment: cfg.Environment,
		File:        cfg.File,
		FileOnly:    cfg.FileOnly,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
		Compress:    cfg.Compress,
	})
	logger.SetDefaultLogger(log)
	return log
}

// New connects the record store, artifact storage and search index and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	objects, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if b, ok := objects.(interface{ EnsureBucket(context.Context) error }); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}
	artifacts := storage.NewArtifactStore(objects)

	index, err := newIndex(ctx, &cfg.Search)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	cleaner := service.NewLLMCleaner(&service.CleanerConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	reassembler := chunker.NewReassembler(
		service.WithCallTimeout(cleaner, cfg.Pipeline.StageTimeout),
		chunker.WithMaxSourceBytes(cfg.Pipeline.MaxSourceBytes),
		chunker.WithMaxChunkBytes(cfg.Pipeline.MaxChunkBytes),
		chunker.WithChunkDelay(cfg.Pipeline.ChunkDelay),
	)

	records := repository.NewWorkItemRepository(db)
	jobs := repository.NewIngestJobRepository(db)
	fetcher := newFetcher(&cfg.YouTube)

	a := &App{
		Config:  cfg,
		DB:      db,
		SQL:     sqlDB,
		Records: records,
		Jobs:    jobs,
		Index:   index,
		Ingest: service.NewIngestService(records, jobs, artifacts, fetcher, reassembler, index, &service.IngestConfig{
			StageTimeout:      cfg.Pipeline.StageTimeout,
			BatchWorkers:      cfg.Pipeline.BatchWorkers,
			MaxPlaylistVideos: cfg.YouTube.MaxPlaylistVideos,
		}),
		Catalog: service.NewCatalogService(records, artifacts, index),
		Chat: service.NewChatService(records, artifacts, cleaner, repository.NewAnalysisSessionRepository(db), &service.ChatConfig{
			Temperature:  cfg.Chat.Temperature,
			MaxTokens:    cfg.Chat.MaxTokens,
			MaxHistory:   cfg.Chat.MaxHistory,
			HistoryLimit: cfg.Chat.HistoryLimit,
			Model:        cleaner.Model(),
		}),
	}

	log.WithFields(logger.Fields{
		"storage": cfg.Storage.Type,
		"search":  cfg.Search.Backend,
		"source":  fetcher.Name(),
		"model":   cleaner.Model(),
	}).Info("Pipeline components initialized")
	return a, nil
}

func newFetcher(cfg *config.YouTubeConfig) source.Fetcher {
	if cfg.Source == "localdir" {
		return localdir.NewFetcher(cfg.LocalDir)
	}
	return youtube.NewFetcher(&youtube.Config{
		APIKey:      cfg.APIKey,
		APIBaseURL:  cfg.BaseURL,
		CaptionURL:  cfg.CaptionURL,
		CaptionLang: cfg.CaptionLang,
	})
}

func newIndex(ctx context.Context, cfg *config.SearchConfig) (search.Index, error) {
	if cfg.Backend != "qdrant" {
		idx, err := search.NewBleveIndex(cfg.BlevePath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}

	embedder := service.NewEmbeddingService(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	idx, err := search.NewQdrantIndex(&search.QdrantConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}
	return idx, nil
}

// Close waits for background reprocess runs, then releases the search index
// and database connections.
func (a *App) Close() error {
	if a.Ingest != nil {
		a.Ingest.Wait()
	}
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.SQL != nil {
		errs = append(errs, a.SQL.Close())
	}
	return errors.Join(errs...)
}
