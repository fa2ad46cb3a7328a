// Package gemini wraps the generative model API: client construction,
// the retry wrapper for transient overload, and tolerant decoding of
// JSON carried inside free-text model output.
package gemini

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/mcardoso/agronota/internal/config"
)

// Client talks to the Gemini API. The underlying genai client is built
// lazily per call so the process boots cleanly without a key; AI-backed
// paths then fail with config.ErrMissingAPIKey and callers degrade.
type Client struct {
	cfg config.Config
	log zerolog.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

func (c *Client) connect(ctx context.Context) (*genai.Client, error) {
	if !c.cfg.HasGeminiKey() {
		return nil, config.ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// GenerateText sends a text-only prompt and returns the raw response text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	})
}

// GenerateFromPDF sends a prompt plus an attached PDF document.
func (c *Client) GenerateFromPDF(ctx context.Context, prompt string, pdf []byte) (string, error) {
	return c.generate(ctx, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: pdf}},
			},
		},
	})
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	c.log.Debug().Str("model", c.cfg.TextModel).Msg("calling Gemini")

	resp, err := client.Models.GenerateContent(ctx, c.cfg.TextModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

// Embed returns the embedding vector for one chunk of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: text}}},
	}
	resp, err := client.Models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini: embedding response has no values")
	}
	return resp.Embeddings[0].Values, nil
}
