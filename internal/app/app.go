// Package app wires configured components into a runnable pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"ragqa/internal/answer"
	"ragqa/internal/augment"
	captiongemini "ragqa/internal/caption/gemini"
	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/embedding/ollama"
	"ragqa/internal/embedding/openai"
	genanthropic "ragqa/internal/generation/anthropic"
	gengemini "ragqa/internal/generation/gemini"
	genopenai "ragqa/internal/generation/openai"
	"ragqa/internal/index"
	"ragqa/internal/indexer"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/badger"
	"ragqa/internal/vectorstore/sqlite"
)

// probeText is embedded at startup to learn the embedder's output dimension.
const probeText = "dimension probe"

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout(),
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: cfg.Timeout()})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// OpenStore opens the configured vector store.
func OpenStore(cfg config.VectorStoreConfig, logger *log.Logger) (vectorstore.Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return sqlite.Open(cfg.Path)
	case "badger":
		return badger.Open(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// NewCaptioner builds the configured captioner. It returns nil when captioning is off.
func NewCaptioner(ctx context.Context, cfg config.CaptionerConfig) (domain.Captioner, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "gemini":
		return captiongemini.New(ctx, captiongemini.Config{APIKeyEnv: cfg.APIKeyEnv, Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("unknown captioner: %s", cfg.Type)
	}
}

// NewGenerator builds the configured answering model.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "openai", "":
		return genopenai.New(genopenai.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv, Model: cfg.Model, MaxTokens: cfg.MaxTokens})
	case "anthropic":
		return genanthropic.New(genanthropic.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv, Model: cfg.Model, MaxTokens: cfg.MaxTokens})
	case "gemini":
		return gengemini.New(ctx, gengemini.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv, Model: cfg.Model, MaxTokens: cfg.MaxTokens})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// Sources converts configured corpus sources.
func Sources(cfg config.CorpusConfig) []corpus.Source {
	out := make([]corpus.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, corpus.Source{Path: s.Path, Kind: s.Kind, BaseURL: s.BaseURL})
	}
	return out
}

// BuildIndex loads the corpus sources, embeds them and saves the result.
func BuildIndex(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (indexer.Stats, error) {
	if len(cfg.Corpus.Sources) == 0 {
		return indexer.Stats{}, errors.New("no corpus sources configured")
	}
	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return indexer.Stats{}, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return indexer.Stats{}, fmt.Errorf("embedder init failed: %w", err)
	}
	docs, err := corpus.NewLoader(logger).Load(Sources(cfg.Corpus))
	if err != nil {
		return indexer.Stats{}, err
	}
	store, err := OpenStore(cfg.VectorStore, logger)
	if err != nil {
		return indexer.Stats{}, fmt.Errorf("vector store init failed: %w", err)
	}
	defer store.Close()

	return indexer.New(ch, emb, cfg.Embedder.RequestsPerSecond, logger).Build(ctx, docs, store)
}

// App is the loaded query pipeline.
type App struct {
	Service *service.QueryService
	store   vectorstore.Store
}

func (a *App) Close() error { return a.store.Close() }

// Load opens the store, loads the index and verifies the embedder against it.
// Any error here is fatal for serving.
func Load(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (*App, error) {
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	captioner, err := NewCaptioner(ctx, cfg.Captioner)
	if err != nil {
		return nil, fmt.Errorf("captioner init failed: %w", err)
	}
	gen, err := NewGenerator(ctx, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator init failed: %w", err)
	}

	store, err := OpenStore(cfg.VectorStore, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}
	app, err := load(ctx, store, emb, captioner, gen, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

func load(ctx context.Context, store vectorstore.Store, emb domain.Embedder, captioner domain.Captioner, gen domain.Generator, cfg *config.AppConfig, logger *log.Logger) (*App, error) {
	c, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			return nil, fmt.Errorf("no index found at %s, run \"ragqa index\" first", cfg.VectorStore.Path)
		}
		return nil, fmt.Errorf("loading index: %w", err)
	}
	idx, err := index.Load(c)
	if err != nil {
		return nil, err
	}

	probe, err := emb.Embed(ctx, probeText)
	if err != nil {
		return nil, fmt.Errorf("embedder probe failed: %w", err)
	}
	if err := idx.CheckEmbedder(emb.Name(), probe); err != nil {
		return nil, fmt.Errorf("index does not match configured embedder: %w", err)
	}

	logger.Info().
		Str("model", idx.Model()).
		Int("dimension", idx.Dimension()).
		Int("records", idx.Len()).
		Str("generator", gen.Name()).
		Bool("captioning", captioner != nil).
		Msg("index loaded")

	svc := service.NewQueryService(service.Runtime{
		Embedder:  emb,
		Index:     idx,
		Augmenter: augment.New(captioner, cfg.Captioner.Timeout(), logger),
		Extractor: answer.NewExtractor(gen, cfg.Generator.Timeout()),
		MaxBlocks: cfg.Retrieval.MaxContextBlocks,
	}, logger)
	return &App{Service: svc, store: store}, nil
}
