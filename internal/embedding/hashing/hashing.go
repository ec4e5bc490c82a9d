package hashing

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/minio/highwayhash"

	"ragqa/internal/embedding"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 512

// hashKey is fixed so vectors are reproducible across processes.
var hashKey = []byte("ragqa-feature-hashing-key-000001")

// Embedder is an offline feature-hashing embedder.
// Tokens are hashed into signed buckets with sublinear term frequency, then L2-normalized.
// It needs no corpus preparation, so the same instance embeds corpus and queries.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed bag-of-words vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil, errors.New("no tokens to embed")
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	vec := make([]float32, e.dimension)
	for tok, count := range tf {
		h := highwayhash.Sum64([]byte(tok), hashKey)
		bucket := int(h % uint64(e.dimension))
		weight := 1 + math.Log(float64(count))
		if h>>63 == 1 {
			weight = -weight
		}
		vec[bucket] += float32(weight)
	}
	if embedding.Norm(vec) == 0 {
		return nil, errors.New("hashed features cancelled out")
	}
	return embedding.Normalize(vec), nil
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
