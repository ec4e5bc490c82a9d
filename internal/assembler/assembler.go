// Package assembler turns ranked records into the bounded context window sent to the model.
package assembler

import (
	"strings"

	"ragqa/internal/domain"
)

// DefaultMaxBlocks is the context budget.
const DefaultMaxBlocks = 15

const imageBlockHeader = "[Image Context]\n"

// Lookup resolves a ranked record index to its metadata.
type Lookup func(index int) (domain.Metadata, bool)

// Assemble walks the ranked records best first and keeps at most one block per source URL.
// When imageDescription is set, it is appended as the last block and takes one slot of the budget.
func Assemble(ranked []domain.ScoredRecord, lookup Lookup, imageDescription string, maxBlocks int) []domain.ContextBlock {
	if maxBlocks <= 0 {
		return []domain.ContextBlock{}
	}
	budget := maxBlocks
	if imageDescription != "" {
		budget--
	}

	window := make([]domain.ContextBlock, 0, maxBlocks)
	seen := make(map[string]struct{}, budget)
	for _, r := range ranked {
		if len(window) >= budget {
			break
		}
		meta, ok := lookup(r.Index)
		if !ok {
			continue
		}
		text := strings.TrimSpace(meta.Text)
		if text == "" {
			continue
		}
		if meta.URL != "" {
			if _, dup := seen[meta.URL]; dup {
				continue
			}
			seen[meta.URL] = struct{}{}
		}
		window = append(window, domain.ContextBlock{Text: text, URL: meta.URL})
	}

	if imageDescription != "" {
		window = append(window, domain.ContextBlock{Text: imageBlockHeader + imageDescription})
	}
	return window
}

// Render formats the window as prompt text.
func Render(window []domain.ContextBlock) string {
	parts := make([]string, 0, len(window))
	for _, b := range window {
		if b.URL == "" {
			parts = append(parts, b.Text)
			continue
		}
		parts = append(parts, b.Text+"\n(Source: "+b.URL+")")
	}
	return strings.Join(parts, "\n\n")
}

// Sources lists the distinct URLs in window order.
func Sources(window []domain.ContextBlock) []string {
	var out []string
	for _, b := range window {
		if b.URL != "" {
			out = append(out, b.URL)
		}
	}
	return out
}
