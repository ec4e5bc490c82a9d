// Package anthropic generates answers with Claude using a forced tool_use block.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragqa/internal/domain"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
)

// Config configures the generator.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
}

type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Generator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (g *Generator) Name() string { return "anthropic:" + g.model }

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (json.RawMessage, error) {
	required, _ := req.Tool.Schema["required"].([]string)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.Tool.Name,
				Description: anthropic.String(req.Tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: req.Tool.Schema["properties"],
					Required:   required,
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Tool.Name},
		},
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &domain.UpstreamError{Stage: domain.StageGeneration, Status: apiErr.StatusCode, Message: err.Error(), Err: err}
		}
		return nil, &domain.UpstreamError{Stage: domain.StageGeneration, Message: err.Error(), Err: err}
	}
	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == req.Tool.Name && len(block.Input) > 0 {
			return block.Input, nil
		}
	}
	return nil, &domain.UpstreamError{Stage: domain.StageGeneration, Message: "response has no " + req.Tool.Name + " tool_use block"}
}
