// Package llm abstracts chat-completion providers. Both the SQL generator
// and the answer composer speak through Client, so a provider swap is a
// config change.
package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client performs one chat completion. Implementations return the raw
// model text; callers own any post-processing such as fence stripping.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
