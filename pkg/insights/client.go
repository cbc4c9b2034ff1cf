// Package insights is a small HTTP client for the feedback insights API.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/service"
)

// ClientOptions configures the API client
type ClientOptions struct {
	// BaseURL is the server root (default: "http://localhost:8080")
	BaseURL string
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds)
	Timeout time.Duration
}

// Client calls the feedback insights API.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a client for the API at baseURL with default settings.
func NewClient(baseURL string) *Client {
	return NewClientWithOptions(ClientOptions{BaseURL: baseURL})
}

// NewClientWithOptions creates a client with custom options.
func NewClientWithOptions(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}

	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{baseURL: opts.BaseURL, httpClient: retryClient}
}

// CreateFeedback submits one item. Identical content returns the existing item.
func (c *Client) CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := c.do(ctx, http.MethodPost, "/api/feedback", req, http.StatusCreated, &feedback); err != nil {
		return nil, err
	}

	return &feedback, nil
}

// EnqueueAnalysis asks the server to analyze an item in the background.
func (c *Client) EnqueueAnalysis(ctx context.Context, id int64, force bool) (*service.EnqueueResult, error) {
	path := "/api/analyze/" + strconv.FormatInt(id, 10) + "?async=true"
	if force {
		path += "&force=true"
	}

	var result service.EnqueueResult
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusAccepted, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, wantStatus int, out any) error {
	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
