package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

type TableFormatter struct {
	w       io.Writer
	headers []string
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{
		w:       w,
		headers: []string{"Row", "Booking", "Guest", "Check-in", "Check-out", "Nights", "State"},
	}
}

func (f *TableFormatter) Format(view timelinepkg.View) error {
	rows := Rows(view)
	if _, err := fmt.Fprintln(f.w, title(view)); err != nil {
		return err
	}

	values := make([][]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, []string{
			row.Row,
			row.Name,
			row.Guest,
			row.CheckIn,
			row.CheckOut,
			fmt.Sprintf("%d", row.Nights),
			row.State,
		})
	}
	widths := f.calculateColumnWidths(values)

	var b strings.Builder
	f.writeBorder(&b, widths, "top")
	f.writeRow(&b, f.headers, widths)
	f.writeBorder(&b, widths, "middle")

	for i, v := range values {
		// Separate rows of different resources
		if i > 0 && v[0] != values[i-1][0] {
			f.writeBorder(&b, widths, "middle")
		}
		f.writeRow(&b, v, widths)
	}
	if len(values) == 0 {
		f.writeRow(&b, []string{"(no bookings)", "", "", "", "", "", ""}, widths)
	}
	f.writeBorder(&b, widths, "bottom")

	_, err := io.WriteString(f.w, b.String())
	return err
}

// calculateColumnWidths determines the display width of each column
func (f *TableFormatter) calculateColumnWidths(values [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, header := range f.headers {
		widths[i] = runewidth.StringWidth(header)
	}
	if widths[0] < len("(no bookings)") {
		widths[0] = len("(no bookings)")
	}
	for _, row := range values {
		for i, value := range row {
			if w := runewidth.StringWidth(value); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func (f *TableFormatter) writeBorder(b *strings.Builder, widths []int, borderType string) {
	var left, middle, right string
	switch borderType {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	b.WriteString("\n")
}

// writeRow left-aligns text columns and right-aligns Nights
func (f *TableFormatter) writeRow(b *strings.Builder, values []string, widths []int) {
	b.WriteString("│")
	for i, value := range values {
		b.WriteString(" ")
		if i == 5 {
			b.WriteString(runewidth.FillLeft(value, widths[i]))
		} else {
			b.WriteString(runewidth.FillRight(value, widths[i]))
		}
		b.WriteString(" │")
	}
	b.WriteString("\n")
}
