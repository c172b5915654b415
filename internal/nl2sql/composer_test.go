package nl2sql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Abhinay1235/aichatbot-service/internal/query"
)

func newTestComposer(t *testing.T, client *scriptedClient) *Composer {
	t.Helper()
	composer, err := NewComposer(client, ComposerConfig{MaxRowsShown: 2},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	return composer
}

func TestComposeEmptyResultSkipsModel(t *testing.T) {
	client := &scriptedClient{}
	composer := newTestComposer(t, client)

	answer, err := composer.Compose(context.Background(), "how many rides?", query.Result{}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if answer != NoDataAnswer {
		t.Fatalf("answer = %q", answer)
	}
	if len(client.requests) != 0 {
		t.Fatal("empty result must not call the model")
	}
}

func TestComposeEmbedsRows(t *testing.T) {
	client := &scriptedClient{responses: []string{"There were 42 successful rides."}}
	composer := newTestComposer(t, client)

	result := query.Result{
		Columns:  []string{"c"},
		Rows:     [][]any{{int64(42)}},
		RowCount: 1,
	}
	answer, err := composer.Compose(context.Background(), "how many successful rides?", result, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if answer != "There were 42 successful rides." {
		t.Fatalf("answer = %q", answer)
	}

	prompt := client.requests[0].Messages[len(client.requests[0].Messages)-1].Content
	if !strings.Contains(prompt, "Query returned 1 rows") || !strings.Contains(prompt, "c: 42") {
		t.Fatalf("prompt must embed the result, got %q", prompt)
	}
}

func TestComposeCapsEmbeddedRows(t *testing.T) {
	client := &scriptedClient{responses: []string{"Lots of rows."}}
	composer := newTestComposer(t, client)

	result := query.Result{
		Columns:  []string{"c"},
		Rows:     [][]any{{1}, {2}, {3}, {4}},
		RowCount: 4,
	}
	if _, err := composer.Compose(context.Background(), "list them", result, nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	prompt := client.requests[0].Messages[len(client.requests[0].Messages)-1].Content
	if strings.Contains(prompt, "Row 3:") {
		t.Fatalf("prompt must cap embedded rows, got %q", prompt)
	}
	if !strings.Contains(prompt, "and 2 more rows") {
		t.Fatalf("prompt must mention omitted rows, got %q", prompt)
	}
}

func TestComposeAppendsTruncationNotice(t *testing.T) {
	client := &scriptedClient{responses: []string{"Here are the trips."}}
	composer := newTestComposer(t, client)

	result := query.Result{
		Columns:   []string{"c"},
		Rows:      [][]any{{1}},
		RowCount:  1,
		Truncated: true,
	}
	answer, err := composer.Compose(context.Background(), "list trips", result, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(answer, "only the first 1 rows were considered") {
		t.Fatalf("expected truncation notice, got %q", answer)
	}
}

func TestComposeModelFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream 500")}
	composer := newTestComposer(t, client)

	result := query.Result{Columns: []string{"c"}, Rows: [][]any{{1}}, RowCount: 1}
	if _, err := composer.Compose(context.Background(), "q", result, nil); err == nil {
		t.Fatal("expected error")
	}
}
