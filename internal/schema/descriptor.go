// Package schema holds the immutable description of the one queryable
// table. The descriptor is built once at startup from the live store
// metadata and shared read-only afterwards.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable reports that the underlying table could not be described.
// It is fatal at startup and never retried.
var ErrUnavailable = errors.New("schema: table unavailable")

type Column struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Examples []string `json:"examples,omitempty"`
}

type Descriptor struct {
	Table    string   `json:"table"`
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// ColumnNames returns the declared column names in table order.
func (d Descriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, column := range d.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Render produces the schema block embedded in generation prompts: table
// name, row count, column list with types and nullability, and sampled
// values for columns that have them.
func (d Descriptor) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", d.Table)
	fmt.Fprintf(&b, "Total rows: %d\n", d.RowCount)
	b.WriteString("Columns:\n")
	for _, column := range d.Columns {
		nullability := "required"
		if column.Nullable {
			nullability = "nullable"
		}
		fmt.Fprintf(&b, "  - %s: %s (%s)\n", column.Name, column.Type, nullability)
	}
	sampled := false
	for _, column := range d.Columns {
		if len(column.Examples) == 0 {
			continue
		}
		if !sampled {
			b.WriteString("Sample values:\n")
			sampled = true
		}
		fmt.Fprintf(&b, "  - %s: %s\n", column.Name, strings.Join(column.Examples, ", "))
	}
	return b.String()
}
