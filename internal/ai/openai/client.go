// Package openai implements the chat capability on top of the OpenAI
// chat-completions API. Groq exposes the same API shape, so the same client
// serves both providers with a different base URL and default model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/spigell/resume-forge/internal/ai"
	"github.com/spigell/resume-forge/internal/logger"
)

const (
	// GroqBaseURL points the OpenAI-compatible client at the Groq API.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	// DefaultOpenAIModel matches the quality tier the pipeline was tuned on.
	DefaultOpenAIModel = "gpt-4.1-2025-04-14"
	// DefaultGroqModel is a fast instruct model suitable for full rewrites.
	DefaultGroqModel = "llama-3.1-8b-instant"

	defaultTimeout      = 120 * time.Second
	defaultMaxLogLength = 200
)

// completions is the slice of the SDK the client depends on. Narrowed for tests.
type completions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Config describes a chat-style backend endpoint.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string
	// BaseURL overrides the API endpoint. Empty means api.openai.com.
	BaseURL string
	// Model is the model identifier. Required.
	Model string
	// Timeout bounds every call. Zero means the package default.
	Timeout time.Duration
	// MaxLogLength limits prompt/response previews in debug logs.
	MaxLogLength int
}

// Client sends the full ordered history as-is; the backend is natively multi-turn.
type Client struct {
	completions completions
	model       string
	timeout     time.Duration
	maxLogLen   int
	logger      *zap.Logger
}

// New builds a chat client for an OpenAI-compatible endpoint.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ai.ErrAuth)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		completions: &client.Chat.Completions,
		model:       model,
		timeout:     timeout,
		maxLogLen:   maxLogLen,
		logger:      logger.WithFields(log, zap.String(logger.FieldModel, model)),
	}, nil
}

// Chat sends the history to the chat-completions endpoint and returns the
// first choice's text.
func (c *Client) Chat(ctx context.Context, history ai.History, opts ai.ChatOptions) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: history is empty", ai.ErrCall)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toMessageParams(history),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	c.logger.Debug("chat completion request",
		zap.Int("messages", len(history)),
		zap.String("last_message_preview", logger.TruncateForLog(history[len(history)-1].Content, c.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.completions.New(callCtx, params)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: api returned no choices", ai.ErrCall)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: api returned empty content", ai.ErrCall)
	}

	c.logger.Debug("chat completion response",
		zap.Int("response_length", utf8.RuneCountInString(content)),
		zap.String("response_preview", logger.TruncateForLog(content, c.maxLogLen)),
	)

	return content, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func toMessageParams(history ai.History) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case ai.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case ai.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// classify maps SDK failures onto the shared provider error kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ai.ErrAuth, err)
		}
	}

	return fmt.Errorf("%w: %v", ai.ErrCall, err)
}

var _ ai.Client = (*Client)(nil)
