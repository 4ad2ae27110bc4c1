package constants

import "strings"

// Booking field names, in column order.
const (
	FieldDate           = "date"
	FieldInwardFrom     = "inward_from"
	FieldInwardTo       = "inward_to"
	FieldOutwardFrom    = "outward_from"
	FieldOutwardTo      = "outward_to"
	FieldVisits         = "visits"
	FieldVendor         = "vendor"
	FieldInwardCharges  = "inward_charges"
	FieldOutwardCharges = "outward_charges"
)

// FieldIndex is a synthetic column holding the 1-based row number; it is never produced by the AI.
const FieldIndex = "idx"

// DefaultVisits is used when a trip does not state a visit count.
const DefaultVisits = "1"

var bookingFields = []string{
	FieldDate,
	FieldInwardFrom,
	FieldInwardTo,
	FieldOutwardFrom,
	FieldOutwardTo,
	FieldVisits,
	FieldVendor,
	FieldInwardCharges,
	FieldOutwardCharges,
}

// BookingFields returns the field catalog in canonical order.
func BookingFields() []string {
	out := make([]string, len(bookingFields))
	copy(out, bookingFields)
	return out
}

// MoneyFields are normalised to plain decimals.
var MoneyFields = []string{FieldInwardCharges, FieldOutwardCharges}

// LocationFields; a trip needs at least one starting point.
var LocationFields = []string{FieldInwardFrom, FieldOutwardFrom}

// CanonicalField maps a key the model produced onto the catalog.
func CanonicalField(key string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	for _, f := range bookingFields {
		if normalized == f {
			return f, true
		}
	}

	synonyms := map[string]string{
		"trip_date":        FieldDate,
		"booking_date":     FieldDate,
		"travel_date":      FieldDate,
		"inward_pickup":    FieldInwardFrom,
		"inward_drop":      FieldInwardTo,
		"outward_pickup":   FieldOutwardFrom,
		"outward_drop":     FieldOutwardTo,
		"visit_count":      FieldVisits,
		"no_of_visits":     FieldVisits,
		"number_of_visits": FieldVisits,
		"cab_vendor":       FieldVendor,
		"provider":         FieldVendor,
		"cab_provider":     FieldVendor,
		"inward_fare":      FieldInwardCharges,
		"inward_amount":    FieldInwardCharges,
		"outward_fare":     FieldOutwardCharges,
		"outward_amount":   FieldOutwardCharges,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}
	return "", false
}
