package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/config"
	dbRedis "github.com/kailas-cloud/papershelf/internal/db/redis"
	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	"github.com/kailas-cloud/papershelf/internal/metrics"
	"github.com/kailas-cloud/papershelf/internal/repository/chathistory"
	chunkrepo "github.com/kailas-cloud/papershelf/internal/repository/chunk"
	"github.com/kailas-cloud/papershelf/internal/repository/chunkmem"
	"github.com/kailas-cloud/papershelf/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/papershelf/internal/transport/openai"
	"github.com/kailas-cloud/papershelf/internal/transport/pdf"
	chatuc "github.com/kailas-cloud/papershelf/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/papershelf/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/papershelf/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/papershelf/internal/usecase/ingest"
	libraryuc "github.com/kailas-cloud/papershelf/internal/usecase/library"
	queryuc "github.com/kailas-cloud/papershelf/internal/usecase/query"
)

// chunkStore is what the use cases need from a vector storage backend.
type chunkStore interface {
	Add(ctx context.Context, chunks []domchunk.Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]result.Result, error)
	Get(ctx context.Context, id string) (result.Result, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (domain.StorageStats, error)
}

// app is the composition root shared by all commands.
type app struct {
	logger   *zap.Logger
	ingest   *ingestuc.Service
	pipeline *queryuc.Pipeline
	library  *libraryuc.Service
	chats    *chatuc.Service // nil unless opened with chat history
	health   *healthuc.Service
	closers  []func()
}

type appOptions struct {
	chat bool
}

// requirePersistentStorage rejects the memory driver for one-shot commands:
// the library would vanish when the command exits.
func requirePersistentStorage(cfg config.Config, command string) error {
	if cfg.Database.Driver != config.DriverMemory {
		return nil
	}
	return fmt.Errorf("%w: %s needs a persistent library, but database.driver is %q; "+
		"set it to %q or %q, or use the HTTP API of \"papershelf serve\"",
		domain.ErrInvalidConfiguration, command, cfg.Database.Driver, config.DriverRedis, config.DriverValkey)
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts appOptions) (a *app, err error) {
	a = &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	model := domain.ModelInfo{
		Name:         cfg.Embedding.Model,
		Dimension:    cfg.Embedding.Dimensions,
		MaxSeqLength: cfg.Embedding.MaxSeqLength,
	}

	store, pinger, kv, err := a.openStorage(ctx, cfg, model)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg, model, kv, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Embedder created",
		zap.String("model", model.Name),
		zap.Int("dimensions", model.Dimension),
		zap.Bool("cache", kv != nil),
	)

	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Logger:  logger,
	}, cfg.LLM.RequestsPerSecond)

	synth, err := queryuc.NewSynthesizer(completer, queryuc.SynthesizerConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}

	a.pipeline, err = queryuc.New(embedder, store, synth,
		queryuc.WithTopK(cfg.Retrieval.TopK),
		queryuc.WithTimeouts(queryuc.Timeouts{
			Embed:    seconds(cfg.Pipeline.EmbedTimeoutSec),
			Retrieve: seconds(cfg.Pipeline.RetrieveTimeoutSec),
			Generate: seconds(cfg.Pipeline.GenerateTimeoutSec),
		}),
		queryuc.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create query pipeline: %w", err)
	}

	parser := pdf.New()
	if err := pdf.CheckAvailable(); err != nil {
		logger.Warn("PDF tools not found, ingestion will fail", zap.String("install", pdf.InstallInstructions()))
	}

	a.ingest, err = ingestuc.New(parser, embedder, store,
		ingestuc.WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
		ingestuc.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest service: %w", err)
	}

	a.library = libraryuc.New(store, embedder, logger)

	components := healthuc.Components{
		Storage:   pinger,
		Embedding: embedder,
		LLM:       completer,
		PDFTools:  parser,
	}

	if opts.chat {
		chatDB, err := chathistory.Open(cfg.Chat.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open chat history: %w", err)
		}
		a.closers = append(a.closers, func() { _ = chatDB.Close() })
		a.chats = chatuc.New(chatDB, a.pipeline, chatuc.WithLogger(logger))
		components.ChatDB = chatDB
		logger.Info("Chat history opened", zap.String("path", chatDB.Path()))
	}

	a.health = healthuc.New(components)
	return a, nil
}

// openStorage returns the chunk store, its health pinger and, for Redis
// and Valkey, the key-value store used by the embedding cache.
func (a *app) openStorage(
	ctx context.Context, cfg config.Config, model domain.ModelInfo,
) (chunkStore, healthuc.Pinger, *dbRedis.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem, err := chunkmem.New(model.Dimension)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create memory store: %w", err)
		}
		a.logger.Info("Using in-memory vector store; data is lost on exit")
		return mem, mem, nil, nil

	case config.DriverRedis, config.DriverValkey:
		// Valkey with the search module speaks the same FT.* dialect.
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create database store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)

		if err := rs.WaitForReady(ctx, seconds(cfg.Database.ReadinessTimeout)); err != nil {
			return nil, nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		a.logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.String("location", rs.Location()),
		)

		repo, err := chunkrepo.New(rs, chunkrepo.Config{
			KeyPrefix:       cfg.Storage.KeyPrefix,
			TagFields:       cfg.Retrieval.TagFields,
			Model:           model,
			HNSWM:           cfg.Retrieval.HNSWM,
			HNSWEFConstruct: cfg.Retrieval.HNSWEFConstruct,
			Location:        rs.Location(),
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create chunk repository: %w", err)
		}
		if err := repo.EnsureIndex(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("ensure index: %w", err)
		}

		var kv *dbRedis.Store
		if cfg.Embedding.Cache.Enabled {
			kv = rs
		}
		return repo, rs, kv, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown database driver %q",
			domain.ErrInvalidConfiguration, cfg.Database.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> shape checks.
func buildEmbedder(
	cfg config.Config, model domain.ModelInfo, kv *dbRedis.Store, logger *zap.Logger,
) (*embeddinguc.Embedder, error) {
	var backend domain.BatchEmbedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      model.Name,
		Dimensions: cfg.Embedding.RequestDimensions,
		Logger:     logger,
	})

	backend = embeddinguc.NewInstrumentedEmbedder(backend, model.Name, cfg.Embedding.MaxBatchSize, logger)

	if kv != nil {
		backend = embcache.New(backend, kv, embcache.Config{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     model.Name,
			TTL:       cfg.CacheTTL(),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	emb, err := embeddinguc.New(backend, model)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return emb, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
