package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Abhinay1235/aichatbot-service/internal/config"
	"github.com/Abhinay1235/aichatbot-service/internal/dataset"
	"github.com/Abhinay1235/aichatbot-service/internal/observability"
	s3store "github.com/Abhinay1235/aichatbot-service/internal/storage/s3"
)

func main() {
	csvPath := flag.String("csv", "", "path to the ride export csv")
	rowsPerPart := flag.Int("rows-per-part", 0, "rows per parquet part; 0 uses the default")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("chatbot-load")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if *csvPath == "" {
		logger.Error("-csv is required")
		os.Exit(1)
	}

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

	loader, err := dataset.NewLoader(objectStore, dataset.LoaderConfig{
		Table:       cfg.Dataset.TableName,
		ManifestKey: cfg.Dataset.ManifestKey,
		RowsPerPart: *rowsPerPart,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize loader", slog.Any("error", err))
		os.Exit(1)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		logger.Error("failed to open csv", slog.String("path", *csvPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = file.Close() }()

	report, err := loader.Load(ctx, file)
	if err != nil {
		logger.Error("dataset load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("dataset load complete",
		slog.String("table", cfg.Dataset.TableName),
		slog.Int64("rows", report.Rows),
		slog.Int64("skipped", report.Skipped),
		slog.Int("parts", report.Parts),
	)
}
