package domain

import (
	"context"
	"encoding/json"
)

// Document represents a single corpus file loaded into the system.
type Document struct {
	ID      string
	URL     string
	Title   string
	Content string
}

// Chunk is a contiguous window of a document used as the unit of retrieval.
// Start is a rune offset into the document content.
type Chunk struct {
	DocumentID string
	Index      int
	Start      int
	Text       string
}

// Metadata describes the chunk behind one stored vector.
type Metadata struct {
	Source     string `json:"source"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_id"`
	Start      int    `json:"start"`
	URL        string `json:"url"`
	Text       string `json:"text"`
	Preview    string `json:"text_preview"`
}

// ScoredRecord is a ranking entry pointing into the corpus.
type ScoredRecord struct {
	Score float64
	Index int
}

// Query is one incoming question with an optional encoded image.
type Query struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
}

// AugmentedQuery is the text used for embedding and for the final prompt.
type AugmentedQuery struct {
	Text             string
	ImageDescription string
}

// ContextBlock is a single passage handed to the generative model.
type ContextBlock struct {
	Text string
	URL  string
}

// Link is one citation of a grounded answer.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Answer is the normalized response payload.
type Answer struct {
	Answer string `json:"answer"`
	Links  []Link `json:"links"`
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Captioner describes an image in text.
type Captioner interface {
	Caption(ctx context.Context, image []byte, mimeType, instruction string) (string, error)
}

// Tool is the structured output contract a generator must satisfy.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// GenerationRequest is a single forced-schema request to a generative model.
type GenerationRequest struct {
	System string
	User   string
	Tool   Tool
}

// Generator produces the structured tool payload for a request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
}
