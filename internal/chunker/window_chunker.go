package chunker

import (
	"errors"

	"ragqa/internal/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// ErrInvalidWindow is returned when size <= overlap or overlap < 0.
var ErrInvalidWindow = errors.New("chunker: size must be greater than overlap and overlap must be non-negative")

// WindowChunker splits text into fixed-size rune windows that overlap their predecessor.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if overlap < 0 || size <= overlap {
		return nil, ErrInvalidWindow
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk splits the document content into windows ordered by start offset.
func (c *WindowChunker) Chunk(document domain.Document) []domain.Chunk {
	return Split(document.ID, document.Content, c.size, c.overlap)
}

// Split is the window algorithm. Each chunk spans [start, min(start+size, n));
// after the chunk that reaches n it stops, otherwise start = end - overlap.
// The caller guarantees size > overlap >= 0.
func Split(documentID, text string, size, overlap int) []domain.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, 0, n/(size-overlap)+1)
	start := 0
	for idx := 0; ; idx++ {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Index:      idx,
			Start:      start,
			Text:       string(runes[start:end]),
		})
		if end == n {
			break
		}
		start = end - overlap
	}
	return chunks
}
