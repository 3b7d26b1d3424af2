package formatter

import (
	"encoding/csv"
	"io"
	"strconv"

	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

type CSVFormatter struct {
	w io.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{w: w}
}

func (f *CSVFormatter) Format(view timelinepkg.View) error {
	w := csv.NewWriter(f.w)

	headers := []string{"Row", "ID", "Booking", "Guest", "Check-in", "Check-out", "Nights", "State"}
	if err := w.Write(headers); err != nil {
		return err
	}

	for _, row := range Rows(view) {
		record := []string{
			row.Row,
			strconv.FormatInt(row.ID, 10),
			row.Name,
			row.Guest,
			row.CheckIn,
			row.CheckOut,
			strconv.Itoa(row.Nights),
			row.State,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
