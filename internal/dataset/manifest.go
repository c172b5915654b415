// Package dataset manages the read-only trips dataset: the parquet files
// in the object store, the manifest that enumerates them, and the loader
// that produces both from a CSV export.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/storage"
)

// DataFile is one parquet part of the dataset.
type DataFile struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Rows int64  `json:"rows"`
}

// Manifest enumerates the parquet files that make up the queryable table.
// The query engine trusts the manifest completely; the loader is the only
// writer.
type Manifest struct {
	Table     string     `json:"table"`
	CreatedAt time.Time  `json:"created_at"`
	Files     []DataFile `json:"files"`
}

func (m Manifest) TotalRows() int64 {
	var total int64
	for _, file := range m.Files {
		total += file.Rows
	}
	return total
}

func ReadManifest(ctx context.Context, store storage.ObjectStore, key string) (Manifest, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %q: %w", key, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %q: %w", key, err)
	}
	if manifest.Table == "" {
		return Manifest{}, fmt.Errorf("manifest %q has no table name", key)
	}
	if len(manifest.Files) == 0 {
		return Manifest{}, fmt.Errorf("manifest %q lists no files", key)
	}
	return manifest, nil
}

func WriteManifest(ctx context.Context, store storage.ObjectStore, key string, manifest Manifest) error {
	if manifest.Table == "" {
		return fmt.Errorf("manifest table name is required")
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return fmt.Errorf("put manifest %q: %w", key, err)
	}
	return nil
}
