// Package gemini generates answers with Gemini using forced function calling.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"

	captiongemini "ragqa/internal/caption/gemini"
	"ragqa/internal/domain"
)

const defaultModel = "gemini-2.0-flash"

// Config configures the generator.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
}

type Generator struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Generator{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

func (g *Generator) Name() string { return "gemini:" + g.model }

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.2)),
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  Schema(req.Tool.Schema),
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{req.Tool.Name},
			},
		},
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = int32(g.maxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, captiongemini.UpstreamError(domain.StageGeneration, err)
	}
	for _, call := range resp.FunctionCalls() {
		if call.Name != req.Tool.Name {
			continue
		}
		raw, err := json.Marshal(call.Args)
		if err != nil {
			return nil, &domain.UpstreamError{Stage: domain.StageGeneration, Message: "unencodable function arguments", Err: err}
		}
		return raw, nil
	}
	return nil, &domain.UpstreamError{Stage: domain.StageGeneration, Message: "response has no " + req.Tool.Name + " function call"}
}

// Schema converts a JSON-schema style map into a Gemini schema.
func Schema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "array":
			s.Type = genai.TypeArray
		case "string":
			s.Type = genai.TypeString
		case "integer":
			s.Type = genai.TypeInteger
		case "number":
			s.Type = genai.TypeNumber
		case "boolean":
			s.Type = genai.TypeBoolean
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = Schema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = Schema(items)
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = req
	}
	return s
}
