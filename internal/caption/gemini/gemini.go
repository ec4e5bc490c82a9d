// Package gemini describes images with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"ragqa/internal/domain"
)

const defaultModel = "gemini-2.0-flash"

// Config configures the captioner.
type Config struct {
	APIKeyEnv string
	Model     string
	BaseURL   string
}

// Captioner implements domain.Captioner on top of the Gemini API.
type Captioner struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Captioner, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Captioner{client: client, model: cfg.Model}, nil
}

// Caption sends the instruction and the image in one user turn and returns the text reply.
func (c *Captioner) Caption(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	})
	if err != nil {
		return "", UpstreamError(domain.StageCaptioning, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.UpstreamError{Stage: domain.StageCaptioning, Message: "empty description"}
	}
	return text, nil
}

// UpstreamError converts a Gemini client error into a domain error carrying the HTTP status.
func UpstreamError(stage string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{Stage: stage, Status: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &domain.UpstreamError{Stage: stage, Message: err.Error(), Err: err}
}
