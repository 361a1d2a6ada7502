package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearchd/internal/catalog"
	"github.com/fyrsmithlabs/docsearchd/internal/chunker"
	"github.com/fyrsmithlabs/docsearchd/internal/completion"
	"github.com/fyrsmithlabs/docsearchd/internal/config"
	"github.com/fyrsmithlabs/docsearchd/internal/embeddings"
	"github.com/fyrsmithlabs/docsearchd/internal/httpapi"
	"github.com/fyrsmithlabs/docsearchd/internal/indexer"
	"github.com/fyrsmithlabs/docsearchd/internal/logging"
	"github.com/fyrsmithlabs/docsearchd/internal/rag"
	"github.com/fyrsmithlabs/docsearchd/internal/search"
	"github.com/fyrsmithlabs/docsearchd/internal/telemetry"
	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

// runServe wires the full service graph and blocks until SIGINT/SIGTERM:
//
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Create the vector store gateway (lazy dial; Qdrant may come up later)
//  4. Create embedding and completion clients
//  5. Wire chunker, indexer, search and RAG services
//  6. Start the HTTP server, shut down gracefully on signal
func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.Endpoint != "" {
		telCfg.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol != "" {
		telCfg.Protocol = cfg.Telemetry.Protocol
	}
	if cfg.Telemetry.SamplingRate > 0 {
		telCfg.Sampling.Rate = cfg.Telemetry.SamplingRate
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	storeCfg := &vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
		UseTLS:     cfg.Qdrant.UseTLS,
	}
	storeCfg.ApplyDefaults()
	conns := vectorstore.NewConnectionManager(storeCfg, logger)
	defer conns.Close()

	store, err := vectorstore.NewGateway(storeCfg, conns, logger)
	if err != nil {
		return fmt.Errorf("creating vector store gateway: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	completer, err := completion.NewService(completion.Config{
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		APIKey:  cfg.Completion.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating completion service: %w", err)
	}

	ch, err := chunker.New(&chunker.Config{
		TargetTokens:    cfg.Chunker.TargetTokens,
		MinChunkTokens:  cfg.Chunker.MinChunkTokens,
		OverlapFraction: cfg.Chunker.OverlapFraction,
	})
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	// The authoritative file catalog belongs to the host application.
	// The standalone daemon runs with the in-memory implementation; embedders
	// of these packages supply their own catalog.Store.
	cat := catalog.NewMemoryStore()

	objects := indexer.NewLocalObjectStore(cfg.Storage.ObjectsDir)
	idx := indexer.NewService(store, embedder, ch, objects, nil,
		cfg.Qdrant.Collection, cfg.Qdrant.VectorSize, logger)

	searcher := search.NewService(store, embedder, cat, cfg.Qdrant.Collection, logger)
	answerer := rag.NewOrchestrator(store, embedder, completer,
		cfg.Qdrant.Collection, cfg.RAG.ExpandQueries, logger)

	server, err := httpapi.NewServer(searcher, answerer, idx, store, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
