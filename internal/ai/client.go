// Package ai wraps the Anthropic API for the two collaborator roles the
// pipeline needs: scoring candidate items and generating app artifacts.
// Every call is gated through the shared dispatcher and wrapped in the
// backoff retrier.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"autoforge/internal/dispatch"
	"autoforge/internal/retry"
)

// Model constants. Generation uses the high-end model; scoring is a simple
// classification task and runs on the cheaper one.
const (
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the generation model, honoring the
// AUTOFORGE_MODEL env var override
func GetDefaultModel() string {
	if model := os.Getenv("AUTOFORGE_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// GetScoringModel returns the scoring model, honoring the
// AUTOFORGE_MODEL_SCORING env var override
func GetScoringModel() string {
	if model := os.Getenv("AUTOFORGE_MODEL_SCORING"); model != "" {
		return model
	}
	return ModelHaiku
}

// Client is the shared AI API client
type Client struct {
	client       *anthropic.Client
	model        string
	scoringModel string
	dispatcher   *dispatch.Dispatcher
	retryOpts    retry.Options
	callTimeout  time.Duration
}

// Config holds client configuration
type Config struct {
	APIKey       string // If empty, reads ANTHROPIC_API_KEY
	Model        string // Generation model (default: Sonnet)
	ScoringModel string // Scoring model (default: Haiku)
	Dispatcher   *dispatch.Dispatcher
	Retry        retry.Options // Label is overridden per call
	CallTimeout  time.Duration // Per-attempt timeout (default: 120s)
}

// NewClient creates an AI client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	scoringModel := cfg.ScoringModel
	if scoringModel == "" {
		scoringModel = GetScoringModel()
	}

	retryOpts := cfg.Retry
	if retryOpts.MaxAttempts == 0 {
		retryOpts = retry.DefaultOptions("ai call")
	}

	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = 120 * time.Second
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Client{
		client:       &client,
		model:        model,
		scoringModel: scoringModel,
		dispatcher:   cfg.Dispatcher,
		retryOpts:    retryOpts,
		callTimeout:  callTimeout,
	}, nil
}

// complete sends one prompt and returns the concatenated text blocks of the
// response. The dispatcher slot is held for the whole call, including
// retries, and released regardless of outcome.
func (c *Client) complete(ctx context.Context, label, model, prompt string, maxTokens int64) (string, error) {
	if err := c.dispatcher.Acquire(ctx); err != nil {
		return "", fmt.Errorf("failed to acquire dispatch slot for %s: %w", label, err)
	}
	defer c.dispatcher.Release()

	opts := c.retryOpts
	opts.Label = label

	var response *anthropic.Message
	err := retry.Do(ctx, opts, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("%s returned an empty response", label)
	}
	return text, nil
}
