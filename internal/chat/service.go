package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/observability"
	"github.com/Abhinay1235/aichatbot-service/internal/query"
	"github.com/Abhinay1235/aichatbot-service/internal/session"
	"github.com/Abhinay1235/aichatbot-service/internal/sqlguard"
)

// Translator produces a gate-approved query for a question and its
// context window.
type Translator interface {
	Translate(ctx context.Context, question string, history []session.Turn) (sqlguard.ValidatedQuery, error)
}

// Composer renders the final user-facing answer.
type Composer interface {
	Compose(ctx context.Context, question string, result query.Result, history []session.Turn) (string, error)
}

type Config struct {
	// MaxContextTurns bounds how much history feeds the prompts.
	MaxContextTurns int
}

type Service struct {
	sessions   *session.Manager
	translator Translator
	composer   Composer
	engine     query.Engine
	cfg        Config
	logger     *slog.Logger
}

func NewService(sessions *session.Manager, translator Translator, composer Composer, engine query.Engine, cfg Config, logger *slog.Logger) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if cfg.MaxContextTurns <= 0 {
		cfg.MaxContextTurns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		translator: translator,
		composer:   composer,
		engine:     engine,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// RunTurn drives one question through the full turn lifecycle. It holds
// the session's turn lock end to end, so concurrent turns for the same
// session serialize while distinct sessions proceed in parallel. An empty
// session id starts a new session.
func (s *Service) RunTurn(ctx context.Context, sessionID, question string) (TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TurnResult{}, fmt.Errorf("question is required")
	}
	if sessionID == "" {
		sessionID = session.NewID()
	}

	release := s.sessions.Acquire(sessionID)
	defer release()

	start := time.Now()
	logger := s.logger.With(
		slog.String("session_id", sessionID),
		slog.String("trace_id", observability.TraceIDFromContext(ctx)))
	logger.Info("turn received", slog.String("state", StateReceived))

	window := s.sessions.Window(sessionID, s.cfg.MaxContextTurns)
	logger.Debug("history windowed",
		slog.String("state", StateWindowed),
		slog.Int("turns", len(window)))

	validated, err := s.translator.Translate(ctx, question, window)
	if err != nil {
		logger.Warn("turn failed", slog.String("kind", KindGenerationFailed), slog.String("error", err.Error()))
		return s.fail(ctx, sessionID, question, "", KindGenerationFailed, start)
	}
	sqlText := validated.Text()
	logger.Info("sql accepted",
		slog.String("state", StateValidated),
		slog.String("sql", sqlText))

	result, err := s.engine.Execute(ctx, validated)
	if err != nil {
		kind := KindExecutionError
		if errors.Is(err, query.ErrTimeout) {
			kind = KindQueryTimeout
		}
		logger.Warn("turn failed", slog.String("kind", kind), slog.String("error", err.Error()))
		return s.fail(ctx, sessionID, question, sqlText, kind, start)
	}
	observability.ObserveQuery(result.RowCount, result.Duration)
	logger.Info("query executed",
		slog.String("state", StateExecuted),
		slog.Int("rows", result.RowCount),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("duration", result.Duration))

	answer, err := s.composer.Compose(ctx, question, result, window)
	if err != nil {
		logger.Warn("turn failed", slog.String("kind", KindComposeFailed), slog.String("error", err.Error()))
		return s.fail(ctx, sessionID, question, sqlText, KindComposeFailed, start)
	}
	logger.Debug("answer composed", slog.String("state", StateComposed))

	s.record(ctx, sessionID, question, answer, logger)
	observability.ObserveTurn("success", time.Since(start))
	logger.Info("turn recorded",
		slog.String("state", StateRecorded),
		slog.Duration("duration", time.Since(start)))

	return TurnResult{
		SessionID: sessionID,
		State:     StateRecorded,
		Answer:    answer,
		SQL:       sqlText,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
	}, nil
}

// fail records the question together with the apology so the next turn's
// context window sees what happened, then reports the typed failure.
func (s *Service) fail(ctx context.Context, sessionID, question, sqlText, kind string, start time.Time) (TurnResult, error) {
	answer := apologyFor(kind)
	s.record(ctx, sessionID, question, answer, s.logger.With(slog.String("session_id", sessionID)))
	observability.ObserveTurn(kind, time.Since(start))
	return TurnResult{
		SessionID: sessionID,
		State:     StateFailed,
		Answer:    answer,
		SQL:       sqlText,
		ErrorKind: kind,
	}, nil
}

// record appends the exchange even when the request context is already
// canceled; losing history would skew every later window.
func (s *Service) record(ctx context.Context, sessionID, question, answer string, logger *slog.Logger) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.sessions.Append(recordCtx, sessionID,
		session.Turn{Role: session.RoleUser, Content: question},
		session.Turn{Role: session.RoleAssistant, Content: answer},
	)
	if err != nil {
		logger.Error("history recording failed", slog.String("error", err.Error()))
	}
}
