package schema

import (
	"strings"
	"testing"
)

func TestRenderListsColumnsAndSamples(t *testing.T) {
	descriptor := Descriptor{
		Table:    "trips",
		RowCount: 42,
		Columns: []Column{
			{Name: "booking_id", Type: "VARCHAR", Nullable: false},
			{Name: "vehicle_type", Type: "VARCHAR", Nullable: true, Examples: []string{"Mini", "Auto"}},
			{Name: "booking_value", Type: "DOUBLE", Nullable: true},
		},
	}

	rendered := descriptor.Render()
	for _, want := range []string{
		"Table: trips",
		"Total rows: 42",
		"booking_id: VARCHAR (required)",
		"vehicle_type: VARCHAR (nullable)",
		"vehicle_type: Mini, Auto",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, "booking_value: \n") {
		t.Fatalf("Render() should skip columns without samples:\n%s", rendered)
	}
}

func TestColumnNamesPreservesOrder(t *testing.T) {
	descriptor := Descriptor{Columns: []Column{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	names := descriptor.ColumnNames()
	if len(names) != 3 || names[0] != "a" || names[2] != "c" {
		t.Fatalf("ColumnNames() = %v", names)
	}
}
