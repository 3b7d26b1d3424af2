package model

import (
	"fmt"
	"strings"
	"time"
)

// Payload field names understood by the formatters and sources
const (
	FieldReferenceName = "reference_name"
	FieldFolioNumber   = "folio_number"
	FieldGuestName     = "partner_name"
	FieldColor         = "color"
	FieldState         = "state"
)

// Default stay times applied to date-only bookings
const (
	CheckInHour  = 16
	CheckOutHour = 14
)

// Timestamp layouts accepted for record boundaries, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// Ref is an (id, label) pair pointing at a catalog entry
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Record is a single booking as returned by a source.
// Start and Stop are kept exactly as received.
type Record struct {
	ID       int64          `json:"id"`
	Start    string         `json:"start"`
	Stop     string         `json:"stop"`
	Resource *Ref           `json:"resource,omitempty"`
	Category *Ref           `json:"category,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// HasResource reports whether the booking is assigned to a resource
func (r Record) HasResource() bool {
	return r.Resource != nil && r.Resource.ID != 0
}

// Interval parses the record boundaries into a half-open range.
// Date-only and naive datetimes are interpreted in loc.
func (r Record) Interval(loc *time.Location) (DateRange, error) {
	start, err := ParseTimestamp(r.Start, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("record %d start: %w", r.ID, err)
	}
	stop, err := ParseTimestamp(r.Stop, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("record %d stop: %w", r.ID, err)
	}
	return DateRange{Start: start, End: stop}, nil
}

// DisplayName returns the reference name, falling back to the folio number
func (r Record) DisplayName() string {
	if name := r.StringField(FieldReferenceName); name != "" {
		return name
	}
	if folio := r.StringField(FieldFolioNumber); folio != "" {
		return folio
	}
	return fmt.Sprintf("#%d", r.ID)
}

// StringField returns a payload field rendered as a string, "" when absent
func (r Record) StringField(name string) string {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ParseTimestamp parses a boundary in any accepted layout
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrMalformedTimestamp)
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, value)
}

// NormalizeStayTimes gives date-only boundaries the default check-in and
// check-out hours. Values that already carry a time are returned as is.
func NormalizeStayTimes(start, stop string) (string, string) {
	return withDefaultHour(start, CheckInHour), withDefaultHour(stop, CheckOutHour)
}

func withDefaultHour(value string, hour int) string {
	value = strings.TrimSpace(value)
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return value
	}
	return d.Add(time.Duration(hour) * time.Hour).Format("2006-01-02 15:04:05")
}
