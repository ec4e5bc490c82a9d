package domain

import "fmt"

// Corpus is the persisted index: two aligned sequences of equal length.
// Vectors[i] is the embedding of the chunk described by Metadata[i].
type Corpus struct {
	Model     string
	Dimension int
	Vectors   [][]float32
	Metadata  []Metadata
}

// NewCorpus creates an empty corpus for the given embedding model.
func NewCorpus(model string, dimension int) *Corpus {
	return &Corpus{Model: model, Dimension: dimension}
}

// Append adds one record to both sequences in lockstep.
func (c *Corpus) Append(vector []float32, meta Metadata) error {
	if c.Dimension == 0 {
		c.Dimension = len(vector)
	}
	if len(vector) != c.Dimension {
		return &DimensionMismatchError{Expected: c.Dimension, Got: len(vector)}
	}
	c.Vectors = append(c.Vectors, vector)
	c.Metadata = append(c.Metadata, meta)
	return nil
}

// Len returns the number of records.
func (c *Corpus) Len() int { return len(c.Metadata) }

// Validate reports whether the two sequences are aligned and share one dimension.
func (c *Corpus) Validate() error {
	if len(c.Vectors) != len(c.Metadata) {
		return &CorpusLoadError{Reason: fmt.Sprintf("%d vectors but %d metadata records", len(c.Vectors), len(c.Metadata))}
	}
	for i, v := range c.Vectors {
		if len(v) != c.Dimension {
			return &CorpusLoadError{Reason: fmt.Sprintf("vector %d has dimension %d, corpus dimension is %d", i, len(v), c.Dimension)}
		}
	}
	return nil
}
