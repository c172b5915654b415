package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Abhinay1235/aichatbot-service/internal/api"
	"github.com/Abhinay1235/aichatbot-service/internal/auth"
	"github.com/Abhinay1235/aichatbot-service/internal/chat"
	"github.com/Abhinay1235/aichatbot-service/internal/config"
	"github.com/Abhinay1235/aichatbot-service/internal/llm"
	"github.com/Abhinay1235/aichatbot-service/internal/nl2sql"
	"github.com/Abhinay1235/aichatbot-service/internal/observability"
	duckdbengine "github.com/Abhinay1235/aichatbot-service/internal/query/duckdb"
	"github.com/Abhinay1235/aichatbot-service/internal/schema"
	"github.com/Abhinay1235/aichatbot-service/internal/session"
	historypostgres "github.com/Abhinay1235/aichatbot-service/internal/session/postgres"
	"github.com/Abhinay1235/aichatbot-service/internal/sqlguard"
	s3store "github.com/Abhinay1235/aichatbot-service/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("chatbot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := duckdbengine.NewEngine(objectStore, duckdbengine.Config{
		Table:       cfg.Dataset.TableName,
		ManifestKey: cfg.Dataset.ManifestKey,
		MaxRows:     cfg.Query.MaxRows,
		Timeout:     cfg.Query.Timeout,
		SampleRows:  cfg.Dataset.SampleRows,
		WorkDir:     cfg.Dataset.WorkDir,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize query engine", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.Prepare(ctx); err != nil {
		if errors.Is(err, schema.ErrUnavailable) {
			logger.Error("dataset manifest not found, load the dataset with chatbot-load first", slog.Any("error", err))
		} else {
			logger.Error("failed to prepare dataset", slog.Any("error", err))
		}
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	descriptor, err := engine.DescribeTable(ctx)
	if err != nil {
		logger.Error("failed to describe dataset table", slog.Any("error", err))
		os.Exit(1)
	}

	readinessChecks := []api.ReadinessCheck{api.CheckObjectStoreConfig(cfg)}

	var recorder session.Recorder
	var historyRepo *historypostgres.Repository
	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(ctx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()

		historyRepo = historypostgres.NewRepository(historyDB)
		recorder = historyRepo
		readinessChecks = append(readinessChecks, historyRepo.HealthCheck)
	}

	sessions := session.NewManager(recorder, logger)
	if historyRepo != nil {
		restored, err := historyRepo.LoadAll(ctx)
		if err != nil {
			logger.Error("failed to restore chat history", slog.Any("error", err))
			os.Exit(1)
		}
		for id, turns := range restored {
			sessions.Restore(id, turns)
		}
		logger.Info("chat history restored", slog.Int("sessions", len(restored)))
	}

	var client llm.Client
	switch cfg.LLM.Provider {
	case "openai":
		client, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	case "gemini":
		var geminiClient *llm.GeminiClient
		geminiClient, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey: cfg.LLM.APIKey,
			Model:  cfg.LLM.Model,
		})
		if err == nil {
			defer func() { _ = geminiClient.Close() }()
			client = geminiClient
		}
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	validator, err := sqlguard.New(sqlguard.Config{
		Table:        cfg.Dataset.TableName,
		ExtraDenied:  cfg.Chat.ExtraDeniedTokens,
		DefaultLimit: cfg.Query.DefaultLimit,
	})
	if err != nil {
		logger.Error("failed to initialize sql validator", slog.Any("error", err))
		os.Exit(1)
	}

	translator, err := nl2sql.NewTranslator(client, validator, descriptor, nl2sql.TranslatorConfig{
		Temperature: cfg.LLM.Temperature,
		Retries:     cfg.Chat.GenerationRetries,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
		os.Exit(1)
	}

	composer, err := nl2sql.NewComposer(client, nl2sql.ComposerConfig{
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize composer", slog.Any("error", err))
		os.Exit(1)
	}

	chatService, err := chat.NewService(sessions, translator, composer, engine, chat.Config{
		MaxContextTurns: cfg.Chat.MaxContextTurns,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize chat service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Chat:              chatService,
		Sessions:          sessions,
		Schema:            descriptor,
		Readiness:         api.CombineReadinessChecks(readinessChecks...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
