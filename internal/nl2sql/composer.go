package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/llm"
	"github.com/Abhinay1235/aichatbot-service/internal/observability"
	"github.com/Abhinay1235/aichatbot-service/internal/query"
	"github.com/Abhinay1235/aichatbot-service/internal/session"
)

const composerSystemPrompt = `You are a helpful data analyst assistant. You analyze ride booking data and provide clear, concise answers to user questions.

Guidelines:
- Be conversational and friendly
- Use the numbers and statistics from the data
- Format numbers nicely (e.g., 1,234 trips)
- Keep responses concise but informative
- If the data shows interesting patterns, mention them`

// NoDataAnswer is returned verbatim for empty result sets; no model call
// is made for them.
const NoDataAnswer = "I could not find any matching data for that question."

type ComposerConfig struct {
	Temperature float64
	MaxTokens   int
	// MaxRowsShown caps how many result rows are embedded in the prompt.
	MaxRowsShown int
}

type Composer struct {
	client llm.Client
	cfg    ComposerConfig
	logger *slog.Logger
}

func NewComposer(client llm.Client, cfg ComposerConfig, logger *slog.Logger) (*Composer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.MaxRowsShown <= 0 {
		cfg.MaxRowsShown = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{client: client, cfg: cfg, logger: logger}, nil
}

// Compose turns a query result into a natural-language answer. Empty
// results short-circuit to NoDataAnswer; truncated results carry a
// deterministic notice regardless of what the model says.
func (c *Composer) Compose(ctx context.Context, question string, result query.Result, history []session.Turn) (string, error) {
	if result.RowCount == 0 {
		return NoDataAnswer, nil
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf(
			"User question: %s\n\nQuery results:\n%s\nPlease provide a clear, natural language answer to the user's question based on these results.",
			strings.TrimSpace(question), c.formatResult(result)),
	})

	start := time.Now()
	answer, err := c.client.Complete(ctx, llm.Request{
		System:      composerSystemPrompt,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	observability.ObserveLLMRequest("compose_answer", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("compose answer: model returned empty text")
	}

	if result.Truncated {
		answer += fmt.Sprintf("\n\nNote: only the first %d rows were considered; the full result was larger.", result.RowCount)
	}
	return answer, nil
}

func (c *Composer) formatResult(result query.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query returned %d rows.\n", result.RowCount)
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(result.Columns, ", "))

	shown := result.Rows
	if len(shown) > c.cfg.MaxRowsShown {
		shown = shown[:c.cfg.MaxRowsShown]
	}
	for i, row := range shown {
		fmt.Fprintf(&b, "Row %d:\n", i+1)
		for j, column := range result.Columns {
			if j < len(row) {
				fmt.Fprintf(&b, "  %s: %v\n", column, row[j])
			}
		}
		b.WriteString("\n")
	}
	if result.RowCount > len(shown) {
		fmt.Fprintf(&b, "... and %d more rows\n", result.RowCount-len(shown))
	}
	return b.String()
}
