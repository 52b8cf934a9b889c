// Package gemini implements the chat capability on top of the Gemini
// generate-content API. The backend has no native multi-turn concept here, so
// the ordered history is flattened into a single prompt before each call.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-forge/internal/ai"
	"github.com/spigell/resume-forge/internal/logger"
)

const (
	// DefaultModel matches the quality tier the pipeline was tuned on.
	DefaultModel = "gemini-2.5-pro"

	defaultTimeout      = 120 * time.Second
	defaultMaxLogLength = 200
)

// models is the slice of the SDK the client depends on. Narrowed for tests.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config describes a single-turn generative backend.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string
	// Model is the model identifier. Empty means DefaultModel.
	Model string
	// Timeout bounds every call. Zero means the package default.
	Timeout time.Duration
	// MaxLogLength limits prompt/response previews in debug logs.
	MaxLogLength int
}

// Client flattens the conversation into one prompt per request.
type Client struct {
	models    models
	model     string
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ai.ErrAuth)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %v", ai.ErrCall, err)
	}

	return &Client{
		models:    client.Models,
		model:     model,
		timeout:   timeout,
		maxLogLen: maxLogLen,
		logger:    logger.WithFields(log, zap.String(logger.FieldModel, model)),
	}, nil
}

// Chat flattens the ordered history into a role-labelled prompt, preserving
// message order, and returns the model's textual response.
func (c *Client) Chat(ctx context.Context, history ai.History, opts ai.ChatOptions) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: history is empty", ai.ErrCall)
	}

	prompt := ai.Flatten(history)

	config := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	c.logger.Debug("generate content request",
		zap.Int("messages", len(history)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.models.GenerateContent(callCtx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", classify(err)
	}

	output := collectText(resp)
	if output == "" {
		return "", fmt.Errorf("%w: api returned empty response", ai.ErrCall)
	}

	c.logger.Debug("generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", logger.TruncateForLog(output, c.maxLogLen)),
	)

	return output, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// classify maps SDK failures onto the shared provider error kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrTimeout, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ai.ErrAuth, err)
		}
	}

	return fmt.Errorf("%w: %v", ai.ErrCall, err)
}

var _ ai.Client = (*Client)(nil)
