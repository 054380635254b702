package cmd

import (
	"context"
	"log/slog"

	"github.com/curia-rag/curia/internal/chunk"
	"github.com/curia-rag/curia/internal/embed"
	"github.com/curia-rag/curia/internal/extract"
	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/llm"
	"github.com/curia-rag/curia/internal/store"
)

// stackOptions selects which collaborators are wired.
type stackOptions struct {
	// LLM wires the language model (query, chat, serve).
	LLM bool

	// Offline skips the Ollama model checks (status).
	Offline bool

	Progress func(index.Progress)
}

// stack is the wired index manager and the resources it owns.
type stack struct {
	manager   *index.Manager
	embedder  embed.Embedder
	extractor *extract.Extractor
	store     *store.Collection
}

// openStack wires the extractor, chunker, embedder, store and language model
// from the configuration.
func (a *app) openStack(ctx context.Context, opts stackOptions) (*stack, error) {
	cfg := a.cfg

	ollamaEmbedder, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:            cfg.Models.OllamaHost,
		Model:           cfg.Models.EmbedModelName,
		Timeout:         cfg.Models.Timeout,
		SkipHealthCheck: opts.Offline,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	embedder := embed.NewCachedEmbedder(ollamaEmbedder, embed.DefaultCacheSize)

	var model llm.LLM
	if opts.LLM {
		model, err = llm.NewOllama(ctx, llm.Config{
			Host:            cfg.Models.OllamaHost,
			Model:           cfg.Models.LLMName,
			Timeout:         cfg.Models.Timeout,
			SkipHealthCheck: opts.Offline,
			Logger:          a.logger,
		})
		if err != nil {
			_ = embedder.Close()
			return nil, err
		}
	}

	coll, err := store.Open(store.Options{
		Dir:    cfg.Data.DBPath,
		Name:   cfg.Data.CollectionName,
		Logger: a.logger,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	extractor := extract.New()
	manager, err := index.NewManager(index.Dependencies{
		Extractor: extractor,
		Chunker:   chunk.New(cfg.ChunkOptions(), a.logger),
		Embedder:  embedder,
		Store:     coll,
		LLM:       model,
		Logger:    a.logger,
		Progress:  opts.Progress,
		Options: index.Options{
			Collection: cfg.Data.CollectionName,
			BatchSize:  cfg.Index.BatchSize,
			TopK:       cfg.Index.TopK,
			LedgerPath: cfg.LedgerPath(),
		},
	})
	if err != nil {
		_ = coll.Close()
		_ = embedder.Close()
		return nil, err
	}

	return &stack{manager: manager, embedder: embedder, extractor: extractor, store: coll}, nil
}

// Close releases the store and the embedder.
func (s *stack) Close(logger *slog.Logger) {
	if err := s.store.Close(); err != nil {
		logger.Warn("store_close_failed", slog.String("error", err.Error()))
	}
	if err := s.embedder.Close(); err != nil {
		logger.Warn("embedder_close_failed", slog.String("error", err.Error()))
	}
}

// buildOptions returns the build options for the configured directories.
func (a *app) buildOptions() index.BuildOptions {
	return index.BuildOptions{
		DataDir:    a.cfg.Data.DataPath,
		LedgerPath: a.cfg.LedgerPath(),
	}
}
