// Package index holds the loaded corpus in memory and ranks it by cosine similarity.
package index

import (
	"fmt"
	"sort"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
)

// Index is a brute-force cosine similarity index over a loaded corpus.
// It is immutable after Load and safe for concurrent readers.
type Index struct {
	model     string
	dimension int
	vectors   [][]float32
	metadata  []domain.Metadata
}

// Load validates the corpus and wraps it. The corpus must not be modified afterwards.
func Load(c *domain.Corpus) (*Index, error) {
	if c == nil {
		return nil, &domain.CorpusLoadError{Reason: "no corpus"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Index{
		model:     c.Model,
		dimension: c.Dimension,
		vectors:   c.Vectors,
		metadata:  c.Metadata,
	}, nil
}

func (x *Index) Model() string  { return x.model }
func (x *Index) Dimension() int { return x.dimension }
func (x *Index) Len() int       { return len(x.metadata) }

// Record returns the metadata stored at position i.
func (x *Index) Record(i int) (domain.Metadata, bool) {
	if i < 0 || i >= len(x.metadata) {
		return domain.Metadata{}, false
	}
	return x.metadata[i], true
}

// Rank scores every record against the query, best first.
// Equal scores keep ascending record order.
func (x *Index) Rank(query []float32) ([]domain.ScoredRecord, error) {
	if len(x.vectors) == 0 {
		return []domain.ScoredRecord{}, nil
	}
	if len(query) != x.dimension {
		return nil, &domain.DimensionMismatchError{Expected: x.dimension, Got: len(query)}
	}
	if !embedding.IsUnit(query) {
		query = embedding.Normalize(query)
	}
	out := make([]domain.ScoredRecord, len(x.vectors))
	for i, v := range x.vectors {
		out[i] = domain.ScoredRecord{Score: embedding.Dot(v, query), Index: i}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

// CheckEmbedder verifies that vectors from the given embedder are comparable with the index.
func (x *Index) CheckEmbedder(name string, probe []float32) error {
	if x.model != "" && name != x.model {
		return fmt.Errorf("index built with %q, configured embedder is %q", x.model, name)
	}
	if x.Len() > 0 && len(probe) != x.dimension {
		return &domain.DimensionMismatchError{Expected: x.dimension, Got: len(probe)}
	}
	return nil
}
