// Package nl2sql turns user questions into validated SQL and query
// results back into prose. Every candidate the model produces goes
// through the sqlguard gate before it can leave this package.
package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/llm"
	"github.com/Abhinay1235/aichatbot-service/internal/observability"
	"github.com/Abhinay1235/aichatbot-service/internal/schema"
	"github.com/Abhinay1235/aichatbot-service/internal/session"
	"github.com/Abhinay1235/aichatbot-service/internal/sqlguard"
)

// GenerationError reports that no acceptable SQL came out of the model
// within the retry budget. Reason is set when the last candidate was
// rejected by the gate, nil when the model call itself failed.
type GenerationError struct {
	Reason    *sqlguard.RejectionReason
	Candidate string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("sql generation rejected: %s", e.Reason.Code)
	}
	return fmt.Sprintf("sql generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type TranslatorConfig struct {
	Temperature float64
	MaxTokens   int
	// Retries is the number of additional attempts after the first
	// candidate is rejected. Each retry feeds the rejection back to the
	// model.
	Retries int
}

type Translator struct {
	client     llm.Client
	validator  *sqlguard.Validator
	descriptor schema.Descriptor
	cfg        TranslatorConfig
	logger     *slog.Logger
}

func NewTranslator(client llm.Client, validator *sqlguard.Validator, descriptor schema.Descriptor, cfg TranslatorConfig, logger *slog.Logger) (*Translator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if len(descriptor.Columns) == 0 {
		return nil, fmt.Errorf("schema descriptor is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		client:     client,
		validator:  validator,
		descriptor: descriptor,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Translate produces a validated query for the question, given the
// session's context window. One rejected candidate earns one corrective
// retry per configured budget; after that the last rejection wins.
func (t *Translator) Translate(ctx context.Context, question string, history []session.Turn) (sqlguard.ValidatedQuery, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	prompt := fmt.Sprintf("Generate a SQL query for: %s", strings.TrimSpace(question))
	if len(history) > 0 {
		prompt += "\n\nReview the conversation above first. If the question references \"them\", \"those\", \"it\" or \"that\", find what it refers to in the previous messages and carry those filters into this query."
	}

	var lastReason *sqlguard.RejectionReason
	var lastCandidate string
	attempts := 1 + t.cfg.Retries
	for attempt := 0; attempt < attempts; attempt++ {
		userPrompt := prompt
		if lastReason != nil {
			userPrompt = fmt.Sprintf(
				"%s\n\nYour previous attempt was rejected: %s.\nRejected query:\n%s\n\nGenerate a corrected query.",
				prompt, lastReason.Detail, lastCandidate)
		}

		start := time.Now()
		raw, err := t.client.Complete(ctx, llm.Request{
			System:      t.systemPrompt(),
			Messages:    append(append([]llm.Message(nil), messages...), llm.Message{Role: llm.RoleUser, Content: userPrompt}),
			Temperature: t.cfg.Temperature,
			MaxTokens:   t.cfg.MaxTokens,
		})
		observability.ObserveLLMRequest("generate_sql", time.Since(start))
		if err != nil {
			return sqlguard.ValidatedQuery{}, &GenerationError{Err: err}
		}

		candidate := stripMarkdownSQL(raw)
		validated, reason := t.validator.Validate(candidate)
		if reason == nil {
			t.logger.Debug("sql generated",
				slog.Int("attempt", attempt+1),
				slog.String("sql", validated.Text()))
			return validated, nil
		}

		observability.IncrementValidatorRejection(reason.Code)
		t.logger.Warn("sql candidate rejected",
			slog.Int("attempt", attempt+1),
			slog.String("code", reason.Code),
			slog.String("candidate", candidate))
		lastReason = reason
		lastCandidate = candidate
	}

	return sqlguard.ValidatedQuery{}, &GenerationError{Reason: lastReason, Candidate: lastCandidate}
}

func (t *Translator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a SQL query generator for analyzing ride booking data. The database is DuckDB, which uses PostgreSQL-like syntax.\n\n")
	b.WriteString("Database schema:\n")
	b.WriteString(t.descriptor.Render())
	b.WriteString("\nWhen the conversation history contains filters (vehicle types, locations, statuses, date ranges), and the current question refers back to them, combine those filters with the new conditions.\n")
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "1. Generate ONLY SELECT queries against the %s table.\n", t.descriptor.Table)
	b.WriteString("2. Return ONLY the SQL query, no explanations and no markdown.\n")
	b.WriteString("3. Use a single statement without comments.\n")
	b.WriteString("4. Add LIMIT when the query might return many rows.\n")
	b.WriteString("5. For aggregations use COUNT, SUM, AVG and similar functions.\n")
	return b.String()
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
