package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/model"
)

// GenerationService is the uniform async contract shared by every media
// capability: stills, image-to-video, composition and audio merge.
type GenerationService interface {
	Submit(ctx context.Context, capability model.Capability, payload *GenerationPayload) (*model.Handle, error)
	Poll(ctx context.Context, handle model.Handle) (*PollResult, error)
	FetchResult(ctx context.Context, handle model.Handle, resultRef string) (string, error)
	IsConfigured() bool
}

// GenerationPayload carries the inputs of any capability. Unused fields are omitted.
type GenerationPayload struct {
	Prompt          string   `json:"prompt,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	AudioURL        string   `json:"audio_url,omitempty"`
	ClipURLs        []string `json:"clip_urls,omitempty"`
	DurationSeconds int      `json:"duration,omitempty"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
}

// PollStatus is the normalized state of a submitted request
type PollStatus string

const (
	PollPending   PollStatus = "pending"
	PollCompleted PollStatus = "completed"
	PollFailed    PollStatus = "failed"
)

// PollResult is the outcome of one poll
type PollResult struct {
	Status    PollStatus
	ResultRef string
	Reason    string
}

func (r *PollResult) IsTerminal() bool {
	return r.Status == PollCompleted || r.Status == PollFailed
}

// SubmissionError is returned when a capability refuses a request outright.
type SubmissionError struct {
	Capability model.Capability
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s submission rejected (status %d): %s", e.Capability, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s submission failed: %s", e.Capability, e.Message)
}

// GenerationClient implements GenerationService for a queue-style inference API:
// POST {base}/{model} enqueues, GET .../requests/{id}/status polls and
// GET .../requests/{id} returns the result document.
type GenerationClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	models     map[model.Capability]string
}

type queueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	ResponseURL string `json:"response_url,omitempty"`
}

type queueStatusResponse struct {
	Status      string `json:"status"`
	ResponseURL string `json:"response_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

type mediaRef struct {
	URL string `json:"url"`
}

// queueResult covers the result shapes of the capabilities we call.
type queueResult struct {
	Images []mediaRef `json:"images,omitempty"`
	Image  *mediaRef  `json:"image,omitempty"`
	Video  *mediaRef  `json:"video,omitempty"`
	Audio  *mediaRef  `json:"audio,omitempty"`
	URL    string     `json:"url,omitempty"`
}

// NewGenerationClient creates a new generation API client
func NewGenerationClient(cfg *config.GenerationConfig) *GenerationClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenerationClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		models: map[model.Capability]string{
			model.CapabilityStillImage:   cfg.ImageModel,
			model.CapabilityImageToVideo: cfg.VideoModel,
			model.CapabilityComposition:  cfg.ComposeModel,
			model.CapabilityAudioMerge:   cfg.MergeModel,
		},
	}
}

// Submit enqueues a request for the given capability
func (c *GenerationClient) Submit(ctx context.Context, capability model.Capability, payload *GenerationPayload) (*model.Handle, error) {
	modelPath, ok := c.models[capability]
	if !ok || modelPath == "" {
		return nil, &SubmissionError{Capability: capability, Message: "capability not configured"}
	}

	var result queueSubmitResponse
	status, err := c.post(ctx, "/"+modelPath, payload, &result)
	if err != nil {
		return nil, &SubmissionError{Capability: capability, StatusCode: status, Message: err.Error()}
	}
	if result.RequestID == "" {
		return nil, &SubmissionError{Capability: capability, StatusCode: status, Message: "no request id in response"}
	}

	return &model.Handle{Capability: capability, RequestID: result.RequestID}, nil
}

// Poll checks a submitted request. Transport errors are returned as errors so the
// caller can leave the element pending; provider-side failures are a failed result.
func (c *GenerationClient) Poll(ctx context.Context, handle model.Handle) (*PollResult, error) {
	endpoint := c.requestPath(handle) + "/status"
	var result queueStatusResponse
	if _, err := c.get(ctx, c.baseURL+endpoint, &result); err != nil {
		return nil, err
	}

	switch strings.ToUpper(result.Status) {
	case "COMPLETED", "OK", "SUCCEEDED":
		ref := result.ResponseURL
		if ref == "" {
			ref = c.baseURL + c.requestPath(handle)
		}
		if result.Error != "" {
			return &PollResult{Status: PollFailed, Reason: result.Error}, nil
		}
		return &PollResult{Status: PollCompleted, ResultRef: ref}, nil
	case "FAILED", "ERROR", "CANCELLED":
		reason := result.Error
		if reason == "" {
			reason = "generation failed"
		}
		return &PollResult{Status: PollFailed, Reason: reason}, nil
	default:
		return &PollResult{Status: PollPending}, nil
	}
}

// FetchResult resolves a completed request's result document into an asset URL
func (c *GenerationClient) FetchResult(ctx context.Context, handle model.Handle, resultRef string) (string, error) {
	var result queueResult
	if _, err := c.get(ctx, resultRef, &result); err != nil {
		return "", err
	}

	url := pickAssetURL(handle.Capability, &result)
	if url == "" {
		return "", fmt.Errorf("no asset url in %s result", handle.Capability)
	}
	return url, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GenerationClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

func (c *GenerationClient) requestPath(handle model.Handle) string {
	return fmt.Sprintf("/%s/requests/%s", c.models[handle.Capability], handle.RequestID)
}

func pickAssetURL(capability model.Capability, r *queueResult) string {
	switch capability {
	case model.CapabilityStillImage:
		if len(r.Images) > 0 && r.Images[0].URL != "" {
			return r.Images[0].URL
		}
		if r.Image != nil {
			return r.Image.URL
		}
	case model.CapabilityImageToVideo, model.CapabilityComposition, model.CapabilityAudioMerge:
		if r.Video != nil && r.Video.URL != "" {
			return r.Video.URL
		}
	}
	return r.URL
}

// post sends a POST request with JSON body
func (c *GenerationClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) (int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request to an absolute URL and parses the JSON response
func (c *GenerationClient) get(ctx context.Context, url string, result interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// errUpstreamStatus marks a non-2xx response
var errUpstreamStatus = errors.New("generation API error")

// doRequest executes an HTTP request and parses the response
func (c *GenerationClient) doRequest(req *http.Request, result interface{}) (int, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	log.Printf("[Generation API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Generation API] ✗ %s %s: request failed: %v", req.Method, req.URL.String(), err)
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Generation API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w (status %d): %s", errUpstreamStatus, resp.StatusCode, truncate(string(respBody), 512))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Generation API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.String(), err)
		return resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
