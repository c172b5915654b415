package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/Abhinay1235/aichatbot-service/internal/storage"
)

const defaultRowsPerPart = 100000

type LoaderConfig struct {
	Table       string
	ManifestKey string
	// PartPrefix is the object key prefix for parquet parts. Defaults to
	// the table name.
	PartPrefix  string
	RowsPerPart int
}

// Loader converts a trips CSV export into parquet parts in the object
// store and publishes a manifest describing them. Loading replaces the
// previous manifest atomically from the reader's point of view: the new
// manifest is written only after every part upload succeeded.
type Loader struct {
	store  storage.ObjectStore
	cfg    LoaderConfig
	logger *slog.Logger
}

type LoadReport struct {
	Rows     int64
	Skipped  int64
	Parts    int
	Manifest Manifest
}

func NewLoader(store storage.ObjectStore, cfg LoaderConfig, logger *slog.Logger) (*Loader, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if strings.TrimSpace(cfg.ManifestKey) == "" {
		return nil, fmt.Errorf("manifest key is required")
	}
	if cfg.PartPrefix == "" {
		cfg.PartPrefix = cfg.Table
	}
	if cfg.RowsPerPart <= 0 {
		cfg.RowsPerPart = defaultRowsPerPart
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, cfg: cfg, logger: logger}, nil
}

// Load streams the CSV export, writing a parquet part every RowsPerPart
// rows. Malformed records are skipped and counted, not fatal; an export
// with zero loadable rows is.
func (l *Loader) Load(ctx context.Context, input io.Reader) (LoadReport, error) {
	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return LoadReport{}, fmt.Errorf("read csv header: %w", err)
	}
	columns := headerIndex(header)
	if _, ok := columns["Booking_ID"]; !ok {
		return LoadReport{}, fmt.Errorf("csv header has no Booking_ID column")
	}

	report := LoadReport{}
	manifest := Manifest{Table: l.cfg.Table, CreatedAt: time.Now().UTC()}
	batch := make([]Trip, 0, l.cfg.RowsPerPart)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		file, err := l.writePart(ctx, len(manifest.Files), batch)
		if err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, file)
		report.Parts++
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return LoadReport{}, fmt.Errorf("read csv record: %w", err)
		}

		trip, err := tripFromRecord(recordByName(columns, record))
		if err != nil {
			report.Skipped++
			if report.Skipped <= 10 {
				l.logger.Warn("skipping record", slog.String("error", err.Error()))
			}
			continue
		}

		batch = append(batch, trip)
		report.Rows++
		if len(batch) >= l.cfg.RowsPerPart {
			if err := flush(); err != nil {
				return LoadReport{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return LoadReport{}, err
	}
	if report.Rows == 0 {
		return LoadReport{}, fmt.Errorf("csv export contains no loadable rows")
	}

	if err := WriteManifest(ctx, l.store, l.cfg.ManifestKey, manifest); err != nil {
		return LoadReport{}, err
	}
	report.Manifest = manifest

	l.logger.Info("dataset loaded",
		slog.String("table", l.cfg.Table),
		slog.Int64("rows", report.Rows),
		slog.Int64("skipped", report.Skipped),
		slog.Int("parts", report.Parts))
	return report, nil
}

func (l *Loader) writePart(ctx context.Context, index int, trips []Trip) (DataFile, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Trip](buf)
	if _, err := writer.Write(trips); err != nil {
		return DataFile{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return DataFile{}, fmt.Errorf("close parquet writer: %w", err)
	}

	key := path.Join(l.cfg.PartPrefix, fmt.Sprintf("part-%05d.parquet", index))
	size := int64(buf.Len())
	if _, err := l.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), size, "application/octet-stream"); err != nil {
		return DataFile{}, fmt.Errorf("put parquet part %q: %w", key, err)
	}
	return DataFile{Key: key, Size: size, Rows: int64(len(trips))}, nil
}

func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	return columns
}

func recordByName(columns map[string]int, record []string) map[string]string {
	named := make(map[string]string, len(columns))
	for name, i := range columns {
		if i < len(record) {
			named[name] = record[i]
		}
	}
	return named
}
