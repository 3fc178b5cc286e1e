package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/adapters/loader"
	"github.com/0xcro3dile/docqa-go/internal/adapters/metrics"
	"github.com/0xcro3dile/docqa-go/internal/adapters/parser"
	"github.com/0xcro3dile/docqa-go/internal/adapters/sessionlog"
	"github.com/0xcro3dile/docqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/session"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/docqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/logging"
)

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Address = addr
			}
			return serve(cmd.Context(), a.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides server.address)")
	return cmd
}

// serve is the composition root: it builds every adapter from cfg, injects
// them into the use cases and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	prom := metrics.NewPrometheus()

	storeOpts := []session.Option{session.WithLogger(logger), session.WithObserver(prom)}
	if cfg.Redis.Enabled {
		client, err := sessionlog.Conn(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
		if err != nil {
			return err
		}
		defer client.Close()
		storeOpts = append(storeOpts, session.WithObserver(sessionlog.NewMirror(client, cfg.Session.TTL, logger)))
		logger.Info("session mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}
	store := session.NewStore(cfg.Session.TTL, storeOpts...)

	embedder := embedding.NewOllamaAdapter(cfg.Embedding.BaseURL, cfg.Embedding.Model,
		embedding.WithParallelism(cfg.Embedding.Parallelism),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithLogger(logger))

	builder, closeBuilder, err := newIndexBuilder(cfg.Index, embedder)
	if err != nil {
		return err
	}
	defer closeBuilder()

	pdf := parser.NewPythonPDFParser(cfg.PDF.ServiceURL, logger)
	if cfg.PDF.PythonPath != "" {
		stop, err := pdf.StartService(cfg.PDF.PythonPath)
		if err != nil {
			return err
		}
		defer stop()
	}
	docs := loader.NewDefaultLoader(pdf)

	common := []usecases.Option{
		usecases.WithLogger(logger),
		usecases.WithLimiter(usecases.NewLimiter(cfg.Retrieval.MaxConcurrent)),
		usecases.WithRecorder(prom),
	}
	ingest := usecases.NewIngestUseCase(store, builder, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap, common...)
	query := usecases.NewQueryUseCase(store, newCompletion(cfg.Generation, logger), nil, usecases.QueryConfig{
		Threshold:             cfg.Retrieval.RelevanceThreshold,
		GenerationTimeout:     cfg.Generation.Timeout,
		MaxTokens:             cfg.Generation.MaxTokens,
		NumericDisambiguation: cfg.Retrieval.NumericDisambiguation,
		Parallelism:           cfg.Retrieval.Parallelism,
	}, common...)
	sessions := usecases.NewSessionUseCase(store, common...)

	if cfg.Watch.Enabled {
		watcher, err := filewatcher.NewFSNotifyWatcher(cfg.Watch.Extensions, logger)
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer watcher.Stop()
		events, err := watcher.Watch(ctx, cfg.Watch.Dir)
		if err != nil {
			return fmt.Errorf("watching %s: %w", cfg.Watch.Dir, err)
		}
		pump := filewatcher.NewPump(docs, ingest, cfg.Watch.SessionID, cfg.Watch.Debounce, logger)
		go pump.Run(ctx, events)
		logger.Info("watching drop folder", zap.String("dir", cfg.Watch.Dir))
	}

	srv := httpserver.NewServer(ingest, query, sessions, docs, httpserver.Options{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Metrics:        prom.Handler(),
	}, logger)
	return srv.Start(ctx)
}

func newIndexBuilder(cfg config.IndexConfig, embedder ports.EmbeddingService) (ports.IndexBuilder, func(), error) {
	opts := []vectordb.Option{vectordb.WithNormalize(cfg.Normalize)}
	if cfg.Backend == "sqlite" {
		b, err := vectordb.NewSQLiteIndexBuilder(cfg.DataDir, embedder, opts...)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	}
	return vectordb.NewMemoryIndexBuilder(embedder, opts...), func() {}, nil
}

func newCompletion(cfg config.GenerationConfig, logger *zap.Logger) ports.CompletionService {
	if cfg.Provider == "openai" {
		return llm.NewOpenAIAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, logger)
	}
	return llm.NewOllamaLLMAdapter(cfg.BaseURL, cfg.Model, cfg.Temperature, logger)
}
