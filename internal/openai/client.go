// Package openai runs structured-output chat completions through the official OpenAI Go SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/formbricks/feedback-insights/internal/models"
)

var (
	// ErrNoChoices is returned when the API response contains no choices.
	ErrNoChoices = errors.New("openai: no choices in response")
	// ErrEmptyContent is returned when the first choice has no message content.
	ErrEmptyContent = errors.New("openai: empty message content")
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
)

// Client calls the chat completions API with a JSON schema response format.
type Client struct {
	sdk     openaisdk.Client
	limiter *rate.Limiter
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	rateLimit  float64
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*clientOptions)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMaxRetries sets transport-level retries for 429/5xx and connection errors.
func WithMaxRetries(n int) ClientOption {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// WithRateLimit caps requests per second. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(o *clientOptions) {
		o.rateLimit = perSecond
	}
}

// WithHTTPClient replaces the retrying transport (tests).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// NewClient creates an inference client. Retries are done by go-retryablehttp, so the SDK's own
// retry loop is disabled.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	o := clientOptions{timeout: defaultTimeout, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = o.maxRetries
		retryClient.HTTPClient.Timeout = o.timeout
		retryClient.Logger = slog.Default()
		httpClient = retryClient.StandardClient()
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}

	c := &Client{sdk: openaisdk.NewClient(sdkOpts...)}
	if o.rateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(o.rateLimit), 1)
	}

	return c
}

// Run sends the prompts with a strict JSON schema response format and returns the message content.
// Content that is valid JSON is returned as-is; anything else is returned as a JSON string so the
// caller's normalizer sees one representation.
func (c *Client) Run(ctx context.Context, model string, req models.InferenceRequest) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("openai rate limit wait: %w", err)
		}
	}

	chat, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(req.SystemPrompt),
			openaisdk.UserMessage(req.UserPrompt),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaisdk.ResponseFormatJSONSchemaParam{
				JSONSchema: openaisdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openaisdk.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(chat.Choices) == 0 {
		return nil, ErrNoChoices
	}

	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if json.Valid([]byte(content)) {
		return json.RawMessage(content), nil
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode message content: %w", err)
	}

	return encoded, nil
}
