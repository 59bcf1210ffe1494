package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"storyforge/internal/services"
)

// TextClient issues plain and JSON-schema constrained text generations.
type TextClient struct {
	*Client
}

// NewTextClient wraps a shared client.
func NewTextClient(c *Client) *TextClient {
	return &TextClient{Client: c}
}

// GenerateOptions tune one text generation call.
type GenerateOptions struct {
	SystemInstruction string
	Temperature       float64
}

// Generate produces free-form text for prompt.
func (c *TextClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("gemini generate: prompt required")
	}
	payload := generateRequest{Contents: textContents(prompt)}
	if opts.SystemInstruction != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: opts.SystemInstruction}}}
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		payload.GenerationConfig = &generationConfig{Temperature: &temp}
	}
	return c.generateText(ctx, payload)
}

// GenerateJSON produces output constrained by schema and decodes it into out.
// A response that does not decode into out is reported as a malformed
// response, not retried.
func (c *TextClient) GenerateJSON(ctx context.Context, prompt string, schema json.RawMessage, temperature float64, out any) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return errors.New("gemini generate: prompt required")
	}
	cfg := &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   schema,
	}
	if temperature > 0 {
		temp := temperature
		cfg.Temperature = &temp
	}
	payload := generateRequest{
		Contents:         textContents(prompt),
		GenerationConfig: cfg,
	}
	text, err := c.generateText(ctx, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), out); err != nil {
		return services.Wrap(services.ErrMalformedResponse, "generation", "decode json", summarizeSnippet(text), err)
	}
	return nil
}

func (c *TextClient) generateText(ctx context.Context, payload generateRequest) (string, error) {
	var resp generateResponse
	if err := c.postJSON(ctx, "/models/"+c.cfg.TextModel+":generateContent", payload, &resp); err != nil {
		return "", err
	}
	first, ok := resp.firstPart()
	if !ok || strings.TrimSpace(first.Text) == "" {
		return "", services.Wrap(services.ErrMalformedResponse, "generation", "read candidates", "empty text response", nil)
	}
	return first.Text, nil
}

// stripCodeFence tolerates models that wrap JSON output in a markdown fence
// despite the JSON response mime type.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

const snippetLimit = 200

func summarizeSnippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > snippetLimit {
		return text[:snippetLimit] + "..."
	}
	return text
}
