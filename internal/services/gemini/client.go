package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel   = "gemini-2.5-flash"
	defaultSpeechModel = "gemini-2.5-flash-preview-tts"
	defaultImageModel  = "imagen-4.0-generate-001"
	defaultVideoModel  = "veo-3.1-fast-generate-preview"
	defaultHTTPTimeout = 120 * time.Second
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	TextModel      string
	ImageModel     string
	SpeechModel    string
	VideoModel     string
	TimeoutSeconds int
}

// Client is the shared HTTP layer under the per-concern clients.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TextModel:      strings.TrimSpace(cfg.TextModel),
			ImageModel:     strings.TrimSpace(cfg.ImageModel),
			SpeechModel:    strings.TrimSpace(cfg.SpeechModel),
			VideoModel:     strings.TrimSpace(cfg.VideoModel),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.TextModel == "" {
		client.cfg.TextModel = defaultTextModel
	}
	if client.cfg.ImageModel == "" {
		client.cfg.ImageModel = defaultImageModel
	}
	if client.cfg.SpeechModel == "" {
		client.cfg.SpeechModel = defaultSpeechModel
	}
	if client.cfg.VideoModel == "" {
		client.cfg.VideoModel = defaultVideoModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// BaseURL reports the resolved endpoint, mostly for logging.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gemini request: encode payload: %w", err)
	}
	url := c.cfg.BaseURL + path + "?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gemini request: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.cfg.BaseURL + path + "?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("gemini request: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("gemini request: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Surface the server's own message when present; the failure
		// signatures ("429", "quota exceeded", "API key not valid")
		// ride along for classification.
		var envelope struct {
			Error *apiError `json:"error"`
		}
		detail := string(body)
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			detail = envelope.Error.Message
			if envelope.Error.Status != "" {
				detail = envelope.Error.Status + ": " + detail
			}
		}
		return &httpStatusError{StatusCode: resp.StatusCode, Body: detail}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gemini request: decode response: %w", err)
	}
	return nil
}

// generateContent wire types, shared by text and speech.

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature        *float64        `json:"temperature,omitempty"`
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage `json:"responseSchema,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig   `json:"speechConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

func (r *generateResponse) firstPart() (part, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return part{}, false
	}
	return r.Candidates[0].Content.Parts[0], true
}

func textContents(text string) []content {
	return []content{{Parts: []part{{Text: text}}}}
}
