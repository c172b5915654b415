package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Trip is one ride booking as stored in the parquet parts. Pointer fields
// map to optional parquet columns; the source export uses empty strings
// and the literal "null" for missing values.
type Trip struct {
	BookingID            string   `parquet:"booking_id"`
	CustomerID           string   `parquet:"customer_id"`
	BookingTimeUnixMs    int64    `parquet:"booking_time_unix_ms"`
	BookingStatus        string   `parquet:"booking_status"`
	VehicleType          string   `parquet:"vehicle_type"`
	PickupLocation       string   `parquet:"pickup_location"`
	DropLocation         string   `parquet:"drop_location"`
	VehicleTATMinutes    *int64   `parquet:"vehicle_tat_minutes,optional"`
	CustomerTATMinutes   *int64   `parquet:"customer_tat_minutes,optional"`
	CanceledByCustomer   *string  `parquet:"canceled_by_customer,optional"`
	CanceledByDriver     *string  `parquet:"canceled_by_driver,optional"`
	IncompleteRide       *string  `parquet:"incomplete_ride,optional"`
	IncompleteRideReason *string  `parquet:"incomplete_ride_reason,optional"`
	BookingValue         *float64 `parquet:"booking_value,optional"`
	PaymentMethod        *string  `parquet:"payment_method,optional"`
	RideDistanceKm       *int64   `parquet:"ride_distance_km,optional"`
	DriverRating         *float64 `parquet:"driver_rating,optional"`
	CustomerRating       *float64 `parquet:"customer_rating,optional"`
}

// tripFromRecord converts one CSV record, keyed by header name, into a
// Trip. Records with no booking id are rejected; everything else degrades
// to a null column.
func tripFromRecord(record map[string]string) (Trip, error) {
	bookingID := cleanValue(record["Booking_ID"])
	if bookingID == "" {
		return Trip{}, fmt.Errorf("record has no booking id")
	}

	trip := Trip{
		BookingID:      bookingID,
		CustomerID:     cleanValue(record["Customer_ID"]),
		BookingStatus:  cleanValue(record["Booking_Status"]),
		VehicleType:    cleanValue(record["Vehicle_Type"]),
		PickupLocation: cleanValue(record["Pickup_Location"]),
		DropLocation:   cleanValue(record["Drop_Location"]),
	}

	if raw := cleanValue(record["Date"]); raw != "" {
		parsed, err := parseBookingTime(raw, cleanValue(record["Time"]))
		if err != nil {
			return Trip{}, fmt.Errorf("booking %s: %w", bookingID, err)
		}
		trip.BookingTimeUnixMs = parsed.UnixMilli()
	}

	trip.VehicleTATMinutes = parseOptionalInt(record["V_TAT"])
	trip.CustomerTATMinutes = parseOptionalInt(record["C_TAT"])
	trip.CanceledByCustomer = parseOptionalString(record["Canceled_Rides_by_Customer"])
	trip.CanceledByDriver = parseOptionalString(record["Canceled_Rides_by_Driver"])
	trip.IncompleteRide = parseOptionalString(record["Incomplete_Rides"])
	trip.IncompleteRideReason = parseOptionalString(record["Incomplete_Rides_Reason"])
	trip.BookingValue = parseOptionalFloat(record["Booking_Value"])
	trip.PaymentMethod = parseOptionalString(record["Payment_Method"])
	trip.RideDistanceKm = parseOptionalInt(record["Ride_Distance"])
	trip.DriverRating = parseOptionalFloat(record["Driver_Ratings"])
	trip.CustomerRating = parseOptionalFloat(record["Customer_Rating"])
	return trip, nil
}

var bookingTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func parseBookingTime(dateRaw, timeRaw string) (time.Time, error) {
	candidate := dateRaw
	if !strings.Contains(dateRaw, ":") && timeRaw != "" {
		candidate = dateRaw + " " + timeRaw
	}
	for _, layout := range bookingTimeLayouts {
		if parsed, err := time.Parse(layout, candidate); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable booking time %q", candidate)
}

func cleanValue(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "null") {
		return ""
	}
	return trimmed
}

func parseOptionalString(raw string) *string {
	cleaned := cleanValue(raw)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func parseOptionalInt(raw string) *int64 {
	cleaned := cleanValue(raw)
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		// exports sometimes write integers as "24.0"
		asFloat, floatErr := strconv.ParseFloat(cleaned, 64)
		if floatErr != nil {
			return nil
		}
		parsed = int64(asFloat)
	}
	return &parsed
}

func parseOptionalFloat(raw string) *float64 {
	cleaned := cleanValue(raw)
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
