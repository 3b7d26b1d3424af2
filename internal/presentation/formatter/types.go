package formatter

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// Output formats accepted by New
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

const stampLayout = "2006-01-02 15:04"

// Formatter writes a view
type Formatter interface {
	Format(view timelinepkg.View) error
}

// Row is one booking line of a listing
type Row struct {
	Row      string `json:"row"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Guest    string `json:"guest,omitempty"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Nights   int    `json:"nights"`
	State    string `json:"state,omitempty"`
	Color    string `json:"color,omitempty"`
}

// New returns the formatter for format, writing to w (stdout when nil)
func New(format string, w io.Writer) (Formatter, error) {
	if w == nil {
		w = os.Stdout
	}
	switch strings.ToLower(format) {
	case "", FormatTable:
		return NewTableFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, csv)", format)
	}
}

// Rows flattens the view's groups in row order
func Rows(view timelinepkg.View) []Row {
	var rows []Row
	for _, g := range view.Groups {
		for _, e := range view.GroupEntries(g) {
			rows = append(rows, newRow(g.Label(), e))
		}
	}
	return rows
}

func newRow(label string, e timelinepkg.Entry) Row {
	rec := e.Record
	return Row{
		Row:      label,
		ID:       rec.ID,
		Name:     rec.DisplayName(),
		Guest:    rec.StringField(model.FieldGuestName),
		CheckIn:  e.Interval.Start.Format(stampLayout),
		CheckOut: e.Interval.End.Format(stampLayout),
		Nights:   nights(e.Interval),
		State:    rec.StringField(model.FieldState),
		Color:    rec.StringField(model.FieldColor),
	}
}

// nights counts calendar nights between check-in and check-out days
func nights(r model.DateRange) int {
	in := model.StartOfDay(r.Start)
	out := model.StartOfDay(r.End)
	return int(math.Round(out.Sub(in).Hours() / 24))
}

func title(view timelinepkg.View) string {
	end := view.Visible.End.Add(-time.Nanosecond)
	return fmt.Sprintf("%s to %s (%s) · %d bookings",
		view.Visible.Start.Format(time.DateOnly), end.Format(time.DateOnly), view.Scale, len(view.Entries))
}
