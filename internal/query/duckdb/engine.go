// Package duckdb executes validated queries against an in-process duckdb
// database. The dataset's parquet parts are staged from the object store
// once at startup and exposed through a single view named after the table,
// so every query runs against the same immutable snapshot.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/Abhinay1235/aichatbot-service/internal/dataset"
	"github.com/Abhinay1235/aichatbot-service/internal/query"
	"github.com/Abhinay1235/aichatbot-service/internal/schema"
	"github.com/Abhinay1235/aichatbot-service/internal/sqlguard"
	"github.com/Abhinay1235/aichatbot-service/internal/storage"
)

type Config struct {
	Table       string
	ManifestKey string
	// MaxRows is the hard cap on returned rows, independent of any LIMIT
	// in the query itself.
	MaxRows int
	Timeout time.Duration
	// SampleRows bounds the example values collected per column by
	// DescribeTable.
	SampleRows int
	// WorkDir is the base directory for staged parquet parts. Empty means
	// the system temp dir.
	WorkDir string
}

type Engine struct {
	store  storage.ObjectStore
	cfg    Config
	logger *slog.Logger

	db       *sql.DB
	workDir  string
	rowCount int64
}

func NewEngine(store storage.ObjectStore, cfg Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if strings.TrimSpace(cfg.ManifestKey) == "" {
		return nil, fmt.Errorf("manifest key is required")
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cfg: cfg, logger: logger}, nil
}

// Prepare reads the manifest, stages its parquet parts into a local work
// dir and builds the table view. It must succeed before Execute or
// DescribeTable can serve.
func (e *Engine) Prepare(ctx context.Context) error {
	manifest, err := dataset.ReadManifest(ctx, e.store, e.cfg.ManifestKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%w: %v", schema.ErrUnavailable, err)
		}
		return err
	}

	if e.cfg.WorkDir != "" {
		if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
			return fmt.Errorf("create work dir base: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(e.cfg.WorkDir, "chatbot-data-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	localPaths := make([]string, 0, len(manifest.Files))
	for index, file := range manifest.Files {
		reader, err := e.store.Get(ctx, file.Key)
		if err != nil {
			_ = os.RemoveAll(workDir)
			return fmt.Errorf("get object %q: %w", file.Key, err)
		}

		localPath := filepath.Join(workDir, fmt.Sprintf("part_%05d.parquet", index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			_ = os.RemoveAll(workDir)
			return fmt.Errorf("stage parquet part %q: %w", file.Key, err)
		}
		if err := reader.Close(); err != nil {
			_ = os.RemoveAll(workDir)
			return fmt.Errorf("close object %q: %w", file.Key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = os.RemoveAll(workDir)
		return fmt.Errorf("open duckdb: %w", err)
	}

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`,
		quoteIdent(e.cfg.Table), quoteStringArray(localPaths))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		_ = db.Close()
		_ = os.RemoveAll(workDir)
		return fmt.Errorf("create view for table %q: %w", e.cfg.Table, err)
	}

	e.db = db
	e.workDir = workDir
	e.rowCount = manifest.TotalRows()

	e.logger.Info("dataset prepared",
		slog.String("table", e.cfg.Table),
		slog.Int("files", len(manifest.Files)),
		slog.Int64("rows", e.rowCount))
	return nil
}

func (e *Engine) Close() error {
	var err error
	if e.db != nil {
		err = e.db.Close()
		e.db = nil
	}
	if e.workDir != "" {
		_ = os.RemoveAll(e.workDir)
		e.workDir = ""
	}
	return err
}

// Execute runs a validated query under the engine timeout and hard row
// cap. The cap is enforced by fetching one row past it, so Truncated is
// exact without counting the full result.
func (e *Engine) Execute(ctx context.Context, q sqlguard.ValidatedQuery) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, fmt.Errorf("engine is not prepared")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", q.Text(), e.cfg.MaxRows+1)

	rows, err := e.db.QueryContext(ctx, wrapped)
	if err != nil {
		return query.Result{}, e.mapError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, e.mapError(ctx, err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, e.mapError(ctx, err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, e.mapError(ctx, err)
	}

	truncated := len(resultRows) > e.cfg.MaxRows
	if truncated {
		resultRows = resultRows[:e.cfg.MaxRows]
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

// DescribeTable builds the schema descriptor the translator feeds into its
// prompts: column names and types from information_schema plus a handful
// of example values per column.
func (e *Engine) DescribeTable(ctx context.Context) (schema.Descriptor, error) {
	if e.db == nil {
		return schema.Descriptor{}, schema.ErrUnavailable
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`,
		e.cfg.Table)
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("describe table %q: %w", e.cfg.Table, err)
	}
	defer func() { _ = rows.Close() }()

	descriptor := schema.Descriptor{Table: e.cfg.Table, RowCount: e.rowCount}
	for rows.Next() {
		var column schema.Column
		var nullable string
		if err := rows.Scan(&column.Name, &column.Type, &nullable); err != nil {
			return schema.Descriptor{}, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "yes")
		descriptor.Columns = append(descriptor.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return schema.Descriptor{}, fmt.Errorf("iterate columns: %w", err)
	}
	if len(descriptor.Columns) == 0 {
		return schema.Descriptor{}, schema.ErrUnavailable
	}

	for i := range descriptor.Columns {
		examples, err := e.sampleColumn(ctx, descriptor.Columns[i].Name)
		if err != nil {
			return schema.Descriptor{}, err
		}
		descriptor.Columns[i].Examples = examples
	}
	return descriptor, nil
}

func (e *Engine) sampleColumn(ctx context.Context, column string) ([]string, error) {
	sampleSQL := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d`,
		quoteIdent(column), quoteIdent(e.cfg.Table), quoteIdent(column), e.cfg.SampleRows)
	rows, err := e.db.QueryContext(ctx, sampleSQL)
	if err != nil {
		return nil, fmt.Errorf("sample column %q: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	examples := make([]string, 0, e.cfg.SampleRows)
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan sample for %q: %w", column, err)
		}
		switch typed := value.(type) {
		case []byte:
			examples = append(examples, string(typed))
		default:
			examples = append(examples, fmt.Sprint(typed))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples for %q: %w", column, err)
	}
	return examples, nil
}

func (e *Engine) mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", query.ErrTimeout, e.cfg.Timeout)
	}
	return fmt.Errorf("%w: %v", query.ErrExecution, err)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
