package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-forge/internal/ai"
)

type fakeModels struct {
	mu      sync.Mutex
	prompts []string
	configs []*genai.GenerateContentConfig
	resp    *genai.GenerateContentResponse
	err     error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}
	f.configs = append(f.configs, config)
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestClient(fake *fakeModels) *Client {
	return &Client{
		models:  fake,
		model:   "gemini-test",
		timeout: time.Second,
		logger:  zap.NewNop(),
	}
}

func TestChatFlattensHistory(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: textResponse("flattened reply")}
	client := newTestClient(fake)

	history := ai.History{
		{Role: ai.RoleSystem, Content: "persona"},
		{Role: ai.RoleUser, Content: "seed request"},
		{Role: ai.RoleAssistant, Content: "first draft"},
	}

	out, err := client.Chat(context.Background(), history, ai.ChatOptions{Temperature: 0.6, MaxTokens: 8000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "flattened reply" {
		t.Fatalf("unexpected output: %q", out)
	}

	if len(fake.prompts) != 1 {
		t.Fatalf("expected single prompt, got %d", len(fake.prompts))
	}

	prompt := fake.prompts[0]
	for _, marker := range []string{"SYSTEM: persona", "USER: seed request", "ASSISTANT: first draft"} {
		if !strings.Contains(prompt, marker) {
			t.Fatalf("prompt missing %q: %s", marker, prompt)
		}
	}

	// Order must survive flattening.
	if strings.Index(prompt, "SYSTEM:") > strings.Index(prompt, "USER:") {
		t.Fatalf("role order not preserved: %s", prompt)
	}

	config := fake.configs[0]
	if config.Temperature == nil || *config.Temperature != float32(0.6) {
		t.Fatalf("temperature not forwarded: %+v", config)
	}
	if config.MaxOutputTokens != 8000 {
		t.Fatalf("max tokens not forwarded: %+v", config)
	}
}

func TestChatEmptyHistory(t *testing.T) {
	t.Parallel()

	client := newTestClient(&fakeModels{resp: textResponse("x")})

	if _, err := client.Chat(context.Background(), nil, ai.ChatOptions{}); !errors.Is(err, ai.ErrCall) {
		t.Fatalf("expected ErrCall, got %v", err)
	}
}

func TestChatEmptyResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(&fakeModels{resp: &genai.GenerateContentResponse{}})
	history := ai.History{{Role: ai.RoleUser, Content: "hi"}}

	if _, err := client.Chat(context.Background(), history, ai.ChatOptions{}); !errors.Is(err, ai.ErrCall) {
		t.Fatalf("expected ErrCall, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		expect error
	}{
		{
			name:   "deadline exceeded",
			err:    context.DeadlineExceeded,
			expect: ai.ErrTimeout,
		},
		{
			name:   "unauthorized",
			err:    genai.APIError{Code: http.StatusUnauthorized},
			expect: ai.ErrAuth,
		},
		{
			name:   "forbidden",
			err:    genai.APIError{Code: http.StatusForbidden},
			expect: ai.ErrAuth,
		},
		{
			name:   "server error",
			err:    genai.APIError{Code: http.StatusInternalServerError},
			expect: ai.ErrCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(tt.err); !errors.Is(got, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}, zap.NewNop()); !errors.Is(err, ai.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
