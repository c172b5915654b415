package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("chatbot-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Dataset.TableName != "trips" {
		t.Fatalf("Dataset.TableName = %q", cfg.Dataset.TableName)
	}
	if cfg.Query.DefaultLimit != 1000 {
		t.Fatalf("Query.DefaultLimit = %d", cfg.Query.DefaultLimit)
	}
	if cfg.Chat.MaxContextTurns != 10 {
		t.Fatalf("Chat.MaxContextTurns = %d", cfg.Chat.MaxContextTurns)
	}
	if cfg.Chat.GenerationRetries != 1 {
		t.Fatalf("Chat.GenerationRetries = %d", cfg.Chat.GenerationRetries)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("LLM.Provider = %q", cfg.LLM.Provider)
	}
}

func TestLoadProdProfileTightensDefaults(t *testing.T) {
	cfg, err := Load("chatbot-api", mapLookup(map[string]string{
		"CHATBOT_PROFILE": "prod",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load("chatbot-api", mapLookup(map[string]string{
		"CHATBOT_HTTP_ADDR":                ":9999",
		"CHATBOT_QUERY_TIMEOUT":            "3s",
		"CHATBOT_QUERY_DEFAULT_LIMIT":      "200",
		"CHATBOT_QUERY_MAX_ROWS":           "500",
		"CHATBOT_CHAT_MAX_CONTEXT_TURNS":   "4",
		"CHATBOT_CHAT_EXTRA_DENIED_TOKENS": "unnest, pivot",
		"CHATBOT_HISTORY_DSN":              "postgres://localhost/chatbot",
		"CHATBOT_LLM_PROVIDER":             "gemini",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Query.Timeout != 3*time.Second {
		t.Fatalf("Query.Timeout = %v", cfg.Query.Timeout)
	}
	if cfg.Query.DefaultLimit != 200 || cfg.Query.MaxRows != 500 {
		t.Fatalf("Query limits = %d/%d", cfg.Query.DefaultLimit, cfg.Query.MaxRows)
	}
	if cfg.Chat.MaxContextTurns != 4 {
		t.Fatalf("Chat.MaxContextTurns = %d", cfg.Chat.MaxContextTurns)
	}
	if len(cfg.Chat.ExtraDeniedTokens) != 2 || cfg.Chat.ExtraDeniedTokens[0] != "unnest" {
		t.Fatalf("ExtraDeniedTokens = %v", cfg.Chat.ExtraDeniedTokens)
	}
	if cfg.History.DSN == "" {
		t.Fatal("History.DSN should be set")
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("LLM.Provider = %q", cfg.LLM.Provider)
	}
}

func TestLoadRejectsMaxRowsBelowDefaultLimit(t *testing.T) {
	_, err := Load("chatbot-api", mapLookup(map[string]string{
		"CHATBOT_QUERY_DEFAULT_LIMIT": "1000",
		"CHATBOT_QUERY_MAX_ROWS":      "10",
	}))
	if err == nil {
		t.Fatal("expected error for max rows below default limit")
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	_, err := Load("chatbot-api", mapLookup(map[string]string{
		"CHATBOT_PROFILE": "staging",
	}))
	if err == nil {
		t.Fatal("expected error for invalid profile")
	}
}
