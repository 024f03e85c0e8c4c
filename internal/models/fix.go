package models

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical store representation of fecha + ' ' + hora.
// Zero padded, so lexicographic order equals chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// Fix represents one observed position sample of a tracked unit
type Fix struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	RPM       *int    `json:"rpm,omitempty"` // omitted when the unit has no rpm column or the value is NULL
	Timestamp string  `json:"timestamp"`     // Format: 2025-01-22 21:42:18

	// Radius queries only, meters rounded to 2 decimals
	Distance *float64 `json:"distancia,omitempty"`

	// Internal ordering and comparison values, never serialized
	SequenceID int64     `json:"-"`
	Time       time.Time `json:"-"`
}

// ParseTimestamp parses a stored display timestamp into its chronological value.
// The wall clock is kept as-is in UTC; the store carries no zone information.
func ParseTimestamp(ts string) (time.Time, bool) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(ts), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LatLng is a bare coordinate pair used by map state
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position returns the coordinate pair of the fix
func (f Fix) Position() LatLng {
	return LatLng{Lat: f.Lat, Lng: f.Lng}
}

// TrackedUnit is a vehicle/device and the store partition holding its fixes
type TrackedUnit struct {
	ID     string `yaml:"id" json:"id" validate:"required"`
	Table  string `yaml:"table" json:"-" validate:"required"`
	Label  string `yaml:"label" json:"label"`
	HasRPM bool   `yaml:"has_rpm" json:"hasRpm"`
}

// QueryWindow is an inclusive time range, both bounds in TimestampLayout
type QueryWindow struct {
	Start string
	End   string
}

// RadiusQuery selects fixes within RadiusMeters of a center point
type RadiusQuery struct {
	CenterLat    float64
	CenterLng    float64
	RadiusMeters int
}
