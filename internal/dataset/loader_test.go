package dataset

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/Abhinay1235/aichatbot-service/internal/storage"
)

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.objects[key] = payload
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	payload, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (s *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

const sampleCSV = `Date,Time,Booking_ID,Booking_Status,Customer_ID,Vehicle_Type,Pickup_Location,Drop_Location,V_TAT,C_TAT,Canceled_Rides_by_Customer,Canceled_Rides_by_Driver,Incomplete_Rides,Incomplete_Rides_Reason,Booking_Value,Payment_Method,Ride_Distance,Driver_Ratings,Customer_Rating
2024-07-26 14:00:00,14:00:00,CNR100001,Success,CID4001,Prime Sedan,Airport,Downtown,13,4,null,null,No,null,623.5,UPI,13,4.5,4.8
2024-07-26 15:30:00,15:30:00,CNR100002,Canceled by Driver,CID4002,Bike,Suburb,Mall,null,null,null,Personal & Car related issue,null,null,null,null,0,null,null
2024-07-26 16:00:00,16:00:00,,Success,CID4003,Auto,Mall,Station,10,3,null,null,No,null,120,Cash,5,4.1,4.0
`

func newTestLoader(t *testing.T, store storage.ObjectStore, rowsPerPart int) *Loader {
	t.Helper()
	loader, err := NewLoader(store, LoaderConfig{
		Table:       "trips",
		ManifestKey: "trips/manifest.json",
		RowsPerPart: rowsPerPart,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return loader
}

func TestLoaderWritesPartsAndManifest(t *testing.T) {
	store := newMemoryStore()
	loader := newTestLoader(t, store, 100)

	report, err := loader.Load(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Rows != 2 {
		t.Fatalf("expected 2 loaded rows, got %d", report.Rows)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", report.Skipped)
	}
	if report.Parts != 1 {
		t.Fatalf("expected 1 part, got %d", report.Parts)
	}

	manifest, err := ReadManifest(context.Background(), store, "trips/manifest.json")
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Table != "trips" {
		t.Fatalf("unexpected manifest table %q", manifest.Table)
	}
	if manifest.TotalRows() != 2 {
		t.Fatalf("expected total rows 2, got %d", manifest.TotalRows())
	}

	payload, ok := store.objects[manifest.Files[0].Key]
	if !ok {
		t.Fatalf("part %q not in store", manifest.Files[0].Key)
	}
	trips, err := parquet.Read[Trip](bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("read parquet part: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips in part, got %d", len(trips))
	}
	if trips[0].BookingID != "CNR100001" {
		t.Fatalf("unexpected first booking %q", trips[0].BookingID)
	}
	if trips[0].BookingValue == nil || *trips[0].BookingValue != 623.5 {
		t.Fatalf("unexpected booking value %v", trips[0].BookingValue)
	}
	if trips[1].BookingValue != nil {
		t.Fatalf("expected nil booking value for canceled ride")
	}
}

func TestLoaderSplitsParts(t *testing.T) {
	store := newMemoryStore()
	loader := newTestLoader(t, store, 1)

	report, err := loader.Load(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Parts != 2 {
		t.Fatalf("expected 2 parts, got %d", report.Parts)
	}
	if got := report.Manifest.Files[0].Key; got != "trips/part-00000.parquet" {
		t.Fatalf("unexpected part key %q", got)
	}
	if got := report.Manifest.Files[1].Key; got != "trips/part-00001.parquet" {
		t.Fatalf("unexpected part key %q", got)
	}
}

func TestLoaderRejectsEmptyExport(t *testing.T) {
	store := newMemoryStore()
	loader := newTestLoader(t, store, 100)

	header := sampleCSV[:strings.Index(sampleCSV, "\n")+1]
	if _, err := loader.Load(context.Background(), strings.NewReader(header)); err == nil {
		t.Fatal("expected error for empty export")
	}
}

func TestLoaderRejectsMissingBookingColumn(t *testing.T) {
	store := newMemoryStore()
	loader := newTestLoader(t, store, 100)

	if _, err := loader.Load(context.Background(), strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Fatal("expected error for missing Booking_ID column")
	}
}

func TestReadManifestMissing(t *testing.T) {
	store := newMemoryStore()
	if _, err := ReadManifest(context.Background(), store, "trips/manifest.json"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestTripFromRecordParsesOptionals(t *testing.T) {
	record := map[string]string{
		"Booking_ID":    "CNR1",
		"Date":          "2024-07-26 14:00:00",
		"V_TAT":         "24.0",
		"Booking_Value": "null",
		"Ride_Distance": "7",
	}
	trip, err := tripFromRecord(record)
	if err != nil {
		t.Fatalf("tripFromRecord: %v", err)
	}
	if trip.VehicleTATMinutes == nil || *trip.VehicleTATMinutes != 24 {
		t.Fatalf("expected V_TAT 24, got %v", trip.VehicleTATMinutes)
	}
	if trip.BookingValue != nil {
		t.Fatal("literal null must map to nil")
	}
	if trip.RideDistanceKm == nil || *trip.RideDistanceKm != 7 {
		t.Fatalf("expected distance 7, got %v", trip.RideDistanceKm)
	}
	if trip.BookingTimeUnixMs == 0 {
		t.Fatal("expected parsed booking time")
	}
}
