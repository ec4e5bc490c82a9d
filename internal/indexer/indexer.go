// Package indexer embeds corpus chunks and persists the aligned index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

const previewRunes = 100

// Stats summarizes one indexing run.
type Stats struct {
	Documents int
	Chunks    int
	Embedded  int
	Skipped   int
	Elapsed   time.Duration
}

// Indexer turns documents into an aligned corpus of vectors and metadata.
type Indexer struct {
	chunker  *chunker.WindowChunker
	embedder domain.Embedder
	limiter  *rate.Limiter
	logger   *log.Logger
}

// New creates an indexer. requestsPerSecond <= 0 disables pacing.
func New(c *chunker.WindowChunker, e domain.Embedder, requestsPerSecond float64, logger *log.Logger) *Indexer {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Indexer{
		chunker:  c,
		embedder: e,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Index embeds every chunk of every document in order.
// A chunk whose embedding fails is logged and skipped.
func (ix *Indexer) Index(ctx context.Context, docs []domain.Document) (*domain.Corpus, Stats, error) {
	started := time.Now()
	// A zero dimension is taken from the first embedded chunk.
	corpus := domain.NewCorpus(ix.embedder.Name(), max(ix.embedder.Dimension(), 0))
	stats := Stats{Documents: len(docs)}

	for _, doc := range docs {
		chunks := ix.chunker.Chunk(doc)
		for _, ch := range chunks {
			stats.Chunks++
			if err := ix.limiter.Wait(ctx); err != nil {
				return nil, stats, fmt.Errorf("indexing cancelled: %w", err)
			}
			vec, err := ix.embedder.Embed(ctx, ch.Text)
			if err == nil && len(vec) == 0 {
				err = errors.New("empty embedding")
			}
			if err == nil {
				err = corpus.Append(embedding.Normalize(vec), metadataFor(doc, ch))
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, stats, fmt.Errorf("indexing cancelled: %w", ctxErr)
				}
				stats.Skipped++
				ix.logger.Warn().Err(err).Str("document", doc.ID).Int("chunk", ch.Index).Msg("skipping chunk")
				continue
			}
			stats.Embedded++
		}
		ix.logger.Debug().Str("document", doc.ID).Int("chunks", len(chunks)).Msg("document indexed")
	}

	stats.Elapsed = time.Since(started)
	ix.logger.Info().
		Int("documents", stats.Documents).
		Int("chunks", stats.Chunks).
		Int("embedded", stats.Embedded).
		Int("skipped", stats.Skipped).
		Dur("elapsed", stats.Elapsed).
		Msg("indexing finished")
	return corpus, stats, nil
}

// Build indexes the documents and saves the result. Nothing is written on failure.
func (ix *Indexer) Build(ctx context.Context, docs []domain.Document, store vectorstore.Store) (Stats, error) {
	corpus, stats, err := ix.Index(ctx, docs)
	if err != nil {
		return stats, err
	}
	if err := store.Save(ctx, corpus); err != nil {
		return stats, fmt.Errorf("saving index: %w", err)
	}
	return stats, nil
}

func metadataFor(doc domain.Document, ch domain.Chunk) domain.Metadata {
	preview := ch.Text
	if r := []rune(preview); len(r) > previewRunes {
		preview = string(r[:previewRunes])
	}
	return domain.Metadata{
		Source:     doc.ID,
		DocumentID: doc.ID,
		ChunkIndex: ch.Index,
		Start:      ch.Start,
		URL:        doc.URL,
		Text:       ch.Text,
		Preview:    preview,
	}
}
