package ai

import (
	"context"
	"strings"
)

// Message roles shared by all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation. Immutable once appended to a history.
type Message struct {
	Role    string
	Content string
}

// History is an ordered, append-only sequence of messages. Helpers return
// extended copies so earlier snapshots stay valid.
type History []Message

// Append returns a new history with the message added. The receiver is not modified.
func (h History) Append(role, content string) History {
	next := make(History, len(h), len(h)+1)
	copy(next, h)
	return append(next, Message{Role: role, Content: content})
}

// ChatOptions carries the per-call generation parameters. The shape is
// identical across providers.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Client is the capability shared by all LLM backends. Callers depend only on
// this contract and never branch on provider identity.
type Client interface {
	// Chat sends the ordered history and returns the assistant's reply text.
	Chat(ctx context.Context, history History, opts ChatOptions) (string, error)
	// Model returns the model identifier used for requests.
	Model() string
}

// Flatten renders an ordered history into a single prompt string for backends
// without a native multi-turn concept. Each message becomes a "ROLE: content"
// block; blocks are joined with blank lines so order and role labels survive
// verbatim.
func Flatten(history History) string {
	blocks := make([]string, 0, len(history))
	for _, msg := range history {
		blocks = append(blocks, strings.ToUpper(msg.Role)+": "+msg.Content)
	}
	return strings.Join(blocks, "\n\n")
}
