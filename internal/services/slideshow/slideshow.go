// Package slideshow renders image slideshows through a declarative
// movie-rendering API: a scene list is built from the episode's images,
// looped until it covers the requested runtime, submitted, and polled until
// the rendered movie URL is available.
package slideshow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"storyforge/internal/services"
)

const (
	defaultBaseURL      = "https://api.json2video.com/v2/movies"
	defaultHTTPTimeout  = 30 * time.Second
	defaultPollAttempts = 40
	pollBaseDelay       = time.Second
	pollMaxDelay        = 30 * time.Second
	transitionSeconds   = 1
)

// AnimationStyle selects per-slide motion.
type AnimationStyle string

const (
	AnimationKenBurns AnimationStyle = "ken_burns"
	AnimationStatic   AnimationStyle = "static"
)

// Options shape the rendered slideshow.
type Options struct {
	AnimationStyle   AnimationStyle
	TransitionStyle  string
	SlideDurationSec int
	TotalDurationMin int
}

// Client talks to the rendering API.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollAttempts int
	sleep        func(context.Context, time.Duration) error
	now          func() time.Time
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

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithPollAttempts overrides the polling budget.
func WithPollAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.pollAttempts = attempts
		}
	}
}

// WithSleeper overrides how polling waits are performed (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides project-id timestamping (used in tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a rendering client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollAttempts: defaultPollAttempts,
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scene struct {
	TransitionEffect   string         `json:"transition-effect,omitempty"`
	TransitionDuration int            `json:"transition-duration,omitempty"`
	Elements           []sceneElement `json:"elements"`
}

type sceneElement struct {
	Type        string   `json:"type"`
	Src         string   `json:"src"`
	Duration    int      `json:"duration"`
	Pan         string   `json:"pan,omitempty"`
	PanDistance *float64 `json:"pan-distance,omitempty"`
}

type moviePayload struct {
	ProjectID  string  `json:"project_id"`
	Resolution string  `json:"resolution"`
	Quality    string  `json:"quality"`
	Draft      bool    `json:"draft"`
	Scenes     []scene `json:"scenes"`
}

var unsafeProjectChars = regexp.MustCompile(`[^a-z0-9]`)

// buildPayload loops the image list until the scene durations cover the
// target runtime and strips the transition from the final scene so the
// movie does not end on a cut.
func (c *Client) buildPayload(imageURLs []string, opts Options, title string) moviePayload {
	slideDuration := opts.SlideDurationSec
	if slideDuration <= 0 {
		slideDuration = 5
	}
	totalSeconds := opts.TotalDurationMin * 60
	loopSeconds := len(imageURLs) * (slideDuration + transitionSeconds)
	loops := 1
	if totalSeconds > 0 && loopSeconds > 0 {
		loops = (totalSeconds + loopSeconds - 1) / loopSeconds
	}

	var scenes []scene
	for i := 0; i < loops; i++ {
		for _, src := range imageURLs {
			element := sceneElement{
				Type:     "image",
				Src:      src,
				Duration: slideDuration,
			}
			if opts.AnimationStyle == AnimationKenBurns {
				distance := 0.05
				element.Pan = "zoom-in"
				element.PanDistance = &distance
			}
			scenes = append(scenes, scene{
				TransitionEffect:   opts.TransitionStyle,
				TransitionDuration: transitionSeconds,
				Elements:           []sceneElement{element},
			})
		}
	}
	if len(scenes) > 0 {
		scenes[len(scenes)-1].TransitionEffect = ""
		scenes[len(scenes)-1].TransitionDuration = 0
	}

	projectID := fmt.Sprintf("%s_%d",
		unsafeProjectChars.ReplaceAllString(strings.ToLower(title), "_"),
		c.now().UnixMilli())

	return moviePayload{
		ProjectID:  projectID,
		Resolution: "full-hd",
		Quality:    "high",
		Scenes:     scenes,
	}
}

type submitResponse struct {
	Success bool   `json:"success"`
	Project string `json:"project"`
	Message string `json:"message"`
}

type statusResponse struct {
	Movie struct {
		Status  string `json:"status"`
		URL     string `json:"url"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"movie"`
}

// Render submits the slideshow and polls until the movie URL is available.
// Polling backs off exponentially, capped at 30 seconds, and gives up with a
// timeout error once the attempt budget is spent. Transient status-check
// failures consume attempts but keep polling.
func (c *Client) Render(ctx context.Context, imageURLs []string, opts Options, title string, onProgress func(string)) (string, error) {
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrInvalidCredential, "slideshow", "submit", "rendering api key required", nil)
	}
	if len(imageURLs) == 0 {
		return "", errors.New("slideshow render: no images")
	}
	if onProgress == nil {
		onProgress = func(string) {}
	}

	payload := c.buildPayload(imageURLs, opts, title)
	onProgress(fmt.Sprintf("Starting render job for project %s", payload.ProjectID))

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("slideshow render: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("slideshow render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	var submitted submitResponse
	if err := c.doJSON(req, &submitted); err != nil {
		return "", err
	}
	if !submitted.Success || submitted.Project == "" {
		return "", fmt.Errorf("slideshow render: submission rejected: %s", submitted.Message)
	}
	onProgress(fmt.Sprintf("Render accepted as project %s, waiting for completion", submitted.Project))

	return c.pollUntilDone(ctx, submitted.Project, onProgress)
}

func (c *Client) pollUntilDone(ctx context.Context, projectID string, onProgress func(string)) (string, error) {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		delay := pollBaseDelay << attempt
		if delay > pollMaxDelay || delay <= 0 {
			delay = pollMaxDelay
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}

		status, err := c.fetchStatus(ctx, projectID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			onProgress(fmt.Sprintf("Status check failed: %v, retrying", err))
			continue
		}
		onProgress(fmt.Sprintf("Status check %d: %s", attempt+1, strings.ToUpper(status.Movie.Status)))

		switch {
		case status.Movie.Status == "done" && status.Movie.URL != "":
			return status.Movie.URL, nil
		case status.Movie.Status == "error":
			return "", fmt.Errorf("slideshow render: render failed: %s", status.Movie.Message)
		}
	}
	return "", services.Wrap(services.ErrTimeout, "slideshow", "poll",
		fmt.Sprintf("render not finished after %d status checks", c.pollAttempts), nil)
}

func (c *Client) fetchStatus(ctx context.Context, projectID string) (statusResponse, error) {
	var status statusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?project="+projectID, nil)
	if err != nil {
		return status, fmt.Errorf("slideshow status: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if err := c.doJSON(req, &status); err != nil {
		return status, err
	}
	return status, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slideshow request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("slideshow request: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slideshow request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("slideshow request: decode response: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
