package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/presentation/layout"
)

// ANSI sequences
const (
	enterAlternateScreen = "\033[?1049h"
	exitAlternateScreen  = "\033[?1049l"
	clearScreen          = "\033[2J"
	clearLine            = "\033[K"
	moveCursorHome       = "\033[H"
	hideCursor           = "\033[?25l"
	showCursor           = "\033[?25h"

	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const keyHelp = "←/→ pan  n/p step  t today  d/w/m/y scale  v layout  q quit"

// DisplayConfig controls terminal output
type DisplayConfig struct {
	LayoutStyle int
	// Plain disables ANSI colors and screen control
	Plain bool
}

// TerminalDisplay draws timeline views onto a terminal
type TerminalDisplay struct {
	config            *DisplayConfig
	out               io.Writer
	sizer             func() *layout.Sizer
	inAlternateScreen bool
	previousScreen    []string
	mu                sync.Mutex
}

// NewTerminalDisplay draws to stdout using the live terminal size
func NewTerminalDisplay(config *DisplayConfig) *TerminalDisplay {
	return NewTerminalDisplayTo(os.Stdout, config, layout.TerminalSizer)
}

// NewTerminalDisplayTo draws to out using sizer for the screen dimensions
func NewTerminalDisplayTo(out io.Writer, config *DisplayConfig, sizer func() *layout.Sizer) *TerminalDisplay {
	if config == nil {
		config = &DisplayConfig{}
	}
	return &TerminalDisplay{config: config, out: out, sizer: sizer}
}

// EnterAlternateScreen switches to alternate screen buffer
func (td *TerminalDisplay) EnterAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()
	if td.inAlternateScreen || td.config.Plain {
		return
	}
	fmt.Fprint(td.out, enterAlternateScreen+clearScreen+moveCursorHome+hideCursor)
	td.inAlternateScreen = true
	td.previousScreen = nil
}

// ExitAlternateScreen returns to normal screen buffer
func (td *TerminalDisplay) ExitAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()
	if !td.inAlternateScreen {
		return
	}
	fmt.Fprint(td.out, clearScreen+moveCursorHome+showCursor+exitAlternateScreen)
	td.inAlternateScreen = false
}

// ToggleLayout switches to the next layout style
func (td *TerminalDisplay) ToggleLayout() {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.config.LayoutStyle = (td.config.LayoutStyle + 1) % layout.StyleCount()
	td.previousScreen = nil
}

// LayoutName returns the active layout name
func (td *TerminalDisplay) LayoutName() string {
	td.mu.Lock()
	defer td.mu.Unlock()
	return layout.GetLayoutStrategy(td.config.LayoutStyle).GetName()
}

// Render draws the view
func (td *TerminalDisplay) Render(view timelinepkg.View) {
	td.mu.Lock()
	defer td.mu.Unlock()

	sizer := td.sizer()
	lines := td.compose(view, sizer)

	w := bufio.NewWriter(td.out)
	defer w.Flush()

	if td.inAlternateScreen {
		// Full clear only when the shape changed
		if len(lines) != len(td.previousScreen) {
			fmt.Fprint(w, clearScreen)
		}
		fmt.Fprint(w, moveCursorHome)
		for _, line := range lines {
			fmt.Fprint(w, line, clearLine, "\n")
		}
	} else {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	td.previousScreen = lines
}

func (td *TerminalDisplay) compose(view timelinepkg.View, sizer *layout.Sizer) []string {
	strategy := layout.GetLayoutStrategy(td.config.LayoutStyle)

	lines := []string{td.header(view, strategy.GetName())}
	lines = append(lines, strategy.Render(view, sizer)...)
	lines = append(lines, "")
	if status := td.status(view); status != "" {
		lines = append(lines, status)
	}
	lines = append(lines, td.paint(colorDim, sizer.Fit(keyHelp, sizer.Width)))
	return lines
}

func (td *TerminalDisplay) header(view timelinepkg.View, layoutName string) string {
	end := view.Visible.End.AddDate(0, 0, -1)
	title := fmt.Sprintf("%s  %s to %s  [%s, %s]  %d bookings",
		strings.ToUpper(view.Focus.Format("January 2006")),
		view.Visible.Start.Format(time.DateOnly),
		end.Format(time.DateOnly),
		view.Scale,
		layoutName,
		len(view.Entries))
	return td.paint(colorBold+colorCyan, title)
}

func (td *TerminalDisplay) status(view timelinepkg.View) string {
	switch {
	case view.Err != nil:
		return td.paint(colorRed, "Error: "+view.Err.Error())
	case view.Loading:
		msg := view.LoadingMessage
		if msg == "" {
			msg = "Loading..."
		}
		return td.paint(colorYellow, msg)
	}
	return ""
}

func (td *TerminalDisplay) paint(color, text string) string {
	if td.config.Plain {
		return text
	}
	return color + text + colorReset
}
