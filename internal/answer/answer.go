// Package answer builds the forced tool-call request and normalizes the model's structured reply.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ragqa/internal/assembler"
	"ragqa/internal/domain"
)

const (
	// ToolName is the function every generator is forced to call.
	ToolName = "generate_answer_with_links"

	// SystemPrompt constrains the model to the supplied context.
	SystemPrompt = "Answer using ONLY the provided context."

	// DefaultTimeout bounds one generation call.
	DefaultTimeout = 60 * time.Second
)

var separator = strings.Repeat("-", 50)

// Tool returns the structured output contract.
func Tool() domain.Tool {
	return domain.Tool{
		Name:        ToolName,
		Description: "Generate an answer with relevant source links",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":        "string",
					"description": "The answer to the question, using only the provided context",
				},
				"links": map[string]any{
					"type":        "array",
					"description": "Sources that support the answer",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"url": map[string]any{
								"type":        "string",
								"description": "A source URL that appears in the provided context. Never invent URLs.",
							},
							"text": map[string]any{
								"type":        "string",
								"description": "What this source says that supports the answer",
							},
						},
						"required": []string{"url", "text"},
					},
				},
			},
			"required": []string{"answer", "links"},
		},
	}
}

// BuildRequest formats the prompts for one question and context window.
func BuildRequest(query domain.AugmentedQuery, window []domain.ContextBlock) domain.GenerationRequest {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(separator)
	b.WriteString("\n")
	b.WriteString(assembler.Render(window))
	b.WriteString("\n")
	b.WriteString(separator)
	b.WriteString("\nQuestion: ")
	b.WriteString(query.Text)
	return domain.GenerationRequest{System: SystemPrompt, User: b.String(), Tool: Tool()}
}

type citation struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

type payload struct {
	Answer  string     `json:"answer"`
	Links   []citation `json:"links"`
	Sources []citation `json:"sources"`
}

// Normalize maps the accepted payload shapes onto Answer.
// Citations may arrive under "links" or "sources", and each may carry "text" or "description".
// "sources" is used when no entry of "links" has a URL.
func Normalize(raw json.RawMessage) (domain.Answer, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Answer{}, &domain.UpstreamError{
			Stage:   domain.StageGeneration,
			Message: "malformed tool arguments: " + err.Error(),
			Err:     err,
		}
	}
	links := toLinks(p.Links)
	if len(links) == 0 {
		links = toLinks(p.Sources)
	}
	return domain.Answer{Answer: p.Answer, Links: links}, nil
}

// toLinks drops citations without a URL and resolves the text alias.
func toLinks(cites []citation) []domain.Link {
	out := make([]domain.Link, 0, len(cites))
	for _, c := range cites {
		url := strings.TrimSpace(c.URL)
		if url == "" {
			continue
		}
		text := c.Text
		if text == "" {
			text = c.Description
		}
		out = append(out, domain.Link{URL: url, Text: text})
	}
	return out
}

// Extractor runs one generation and normalizes its result.
type Extractor struct {
	generator domain.Generator
	timeout   time.Duration
}

func NewExtractor(g domain.Generator, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{generator: g, timeout: timeout}
}

// Extract builds the request, calls the generator under the timeout and normalizes the reply.
func (e *Extractor) Extract(ctx context.Context, query domain.AugmentedQuery, window []domain.ContextBlock) (domain.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.Generate(ctx, BuildRequest(query, window))
	if err != nil {
		return domain.Answer{}, asUpstream(err)
	}
	return Normalize(raw)
}

func asUpstream(err error) error {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &domain.UpstreamError{Stage: domain.StageGeneration, Message: err.Error(), Err: err}
}
