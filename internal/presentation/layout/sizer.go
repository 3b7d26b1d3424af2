package layout

import (
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	minWidth      = 40
)

// Sizer measures and fits text to a terminal of Width x Height cells
type Sizer struct {
	Width  int
	Height int
}

func NewSizer(width, height int) *Sizer {
	return &Sizer{Width: width, Height: height}
}

// TerminalSizer sizes to stdout, falling back to 80x24 when it is not a terminal
func TerminalSizer() *Sizer {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth {
		width, height = defaultWidth, defaultHeight
	}
	util.LogDebugf("TerminalSizer %dx%d", width, height)
	return NewSizer(width, height)
}

// DisplayWidth returns the cell width of s
func (s *Sizer) DisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// PadString pads text to width cells
func (s *Sizer) PadString(text string, width int, leftAlign bool) string {
	if leftAlign {
		return runewidth.FillRight(text, width)
	}
	return runewidth.FillLeft(text, width)
}

// Fit truncates text to width cells, marking the cut with an ellipsis
func (s *Sizer) Fit(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(text, width, "…"), width)
}
