package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"storyforge/internal/services"
)

// ImageClient issues image synthesis requests.
type ImageClient struct {
	*Client
}

// NewImageClient wraps a shared client.
func NewImageClient(c *Client) *ImageClient {
	return &ImageClient{Client: c}
}

// ImageParams describe one image request. Count defaults to 1 and Seed is
// passed through verbatim so a slot can be regenerated reproducibly.
type ImageParams struct {
	Prompt         string
	Style          string
	Chips          []string
	NegativePrompt string
	Count          int
	Seed           int64
	AspectRatio    string
}

// FullPrompt joins the base prompt, chips, style, and the negative clause
// into the single comma-separated prompt the model receives.
func (p ImageParams) FullPrompt() string {
	parts := make([]string, 0, len(p.Chips)+3)
	for _, piece := range append([]string{p.Prompt}, p.Chips...) {
		if piece = strings.TrimSpace(piece); piece != "" {
			parts = append(parts, piece)
		}
	}
	if style := strings.TrimSpace(p.Style); style != "" {
		parts = append(parts, style)
	}
	if negative := strings.TrimSpace(p.NegativePrompt); negative != "" {
		parts = append(parts, "avoiding: "+negative)
	}
	return strings.Join(parts, ", ")
}

type imagePredictRequest struct {
	Instances  []imageInstance `json:"instances"`
	Parameters imageParameters `json:"parameters"`
}

type imageInstance struct {
	Prompt string `json:"prompt"`
}

type imageParameters struct {
	SampleCount    int    `json:"sampleCount"`
	OutputMimeType string `json:"outputMimeType"`
	AspectRatio    string `json:"aspectRatio"`
	Seed           *int64 `json:"seed,omitempty"`
}

type imagePredictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// Generate returns PNG buffers, one per requested image.
func (c *ImageClient) Generate(ctx context.Context, params ImageParams) ([][]byte, error) {
	prompt := params.FullPrompt()
	if prompt == "" {
		return nil, errors.New("gemini image: prompt required")
	}
	count := params.Count
	if count <= 0 {
		count = 1
	}
	aspect := params.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}
	payload := imagePredictRequest{
		Instances: []imageInstance{{Prompt: prompt}},
		Parameters: imageParameters{
			SampleCount:    count,
			OutputMimeType: "image/png",
			AspectRatio:    aspect,
		},
	}
	if params.Seed != 0 {
		seed := params.Seed
		payload.Parameters.Seed = &seed
	}

	var resp imagePredictResponse
	if err := c.postJSON(ctx, "/models/"+c.cfg.ImageModel+":predict", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "images", "read predictions", "empty prediction list", nil)
	}
	images := make([][]byte, 0, len(resp.Predictions))
	for _, prediction := range resp.Predictions {
		data, err := base64.StdEncoding.DecodeString(prediction.BytesBase64Encoded)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformedResponse, "images", "decode payload", "invalid base64 image data", err)
		}
		images = append(images, data)
	}
	return images, nil
}
