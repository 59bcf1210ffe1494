package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storyforge/internal/services"
)

// VideoClient drives the long-running video generation operation: submit,
// poll, download. The polling cadence lives in the pipeline.
type VideoClient struct {
	*Client
}

// NewVideoClient wraps a shared client.
func NewVideoClient(c *Client) *VideoClient {
	return &VideoClient{Client: c}
}

// SeedImage optionally conditions the clip on a still frame.
type SeedImage struct {
	Data     []byte
	MimeType string
}

// VideoParams describe one clip request.
type VideoParams struct {
	Prompt      string
	SeedImage   *SeedImage
	Model       string
	Resolution  string
	AspectRatio string
}

// Job tracks one submitted operation.
type Job struct {
	Name     string
	Done     bool
	VideoURI string
}

type videoSubmitRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type videoInstance struct {
	Prompt string          `json:"prompt"`
	Image  *videoSeedImage `json:"image,omitempty"`
}

type videoSeedImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type videoParameters struct {
	SampleCount int    `json:"sampleCount"`
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type operationResponse struct {
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	Error    *apiError `json:"error"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

// Submit starts a video generation operation.
func (c *VideoClient) Submit(ctx context.Context, params VideoParams) (Job, error) {
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return Job{}, errors.New("gemini video: prompt required")
	}
	model := strings.TrimSpace(params.Model)
	if model == "" {
		model = c.cfg.VideoModel
	}
	instance := videoInstance{Prompt: prompt}
	if params.SeedImage != nil {
		instance.Image = &videoSeedImage{
			BytesBase64Encoded: encodeBase64(params.SeedImage.Data),
			MimeType:           params.SeedImage.MimeType,
		}
	}
	payload := videoSubmitRequest{
		Instances: []videoInstance{instance},
		Parameters: videoParameters{
			SampleCount: 1,
			Resolution:  params.Resolution,
			AspectRatio: params.AspectRatio,
		},
	}
	var resp operationResponse
	if err := c.postJSON(ctx, "/models/"+model+":predictLongRunning", payload, &resp); err != nil {
		return Job{}, err
	}
	if resp.Name == "" {
		return Job{}, services.Wrap(services.ErrMalformedResponse, "video", "submit", "operation name missing", nil)
	}
	return jobFromOperation(resp), nil
}

// Poll refreshes the operation state.
func (c *VideoClient) Poll(ctx context.Context, job Job) (Job, error) {
	if job.Name == "" {
		return Job{}, errors.New("gemini video: job name required")
	}
	var resp operationResponse
	if err := c.getJSON(ctx, "/"+strings.TrimPrefix(job.Name, "/"), &resp); err != nil {
		return job, err
	}
	if resp.Error != nil {
		return job, fmt.Errorf("gemini video: operation failed: %s", resp.Error.Message)
	}
	return jobFromOperation(resp), nil
}

// Download fetches the finished clip, passing the API key as a query
// credential the way the video endpoint requires.
func (c *VideoClient) Download(ctx context.Context, job Job) ([]byte, error) {
	if !job.Done || job.VideoURI == "" {
		return nil, errors.New("gemini video: job has no download link")
	}
	uri := job.VideoURI
	if strings.Contains(uri, "?") {
		uri += "&key=" + c.cfg.APIKey
	} else {
		uri += "?key=" + c.cfg.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini video: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini video: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: "video download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini video: read clip: %w", err)
	}
	return data, nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func jobFromOperation(resp operationResponse) Job {
	job := Job{Name: resp.Name, Done: resp.Done}
	if resp.Response != nil && resp.Response.GenerateVideoResponse != nil {
		samples := resp.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			job.VideoURI = samples[0].Video.URI
		}
	}
	return job
}
