package timeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/monitoring"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/presentation/display"
	"github.com/penwyp/go-booking-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-booking-timeline/internal/presentation/layout"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// BrowseConfig configures the interactive browser
type BrowseConfig struct {
	Session Config

	// Dataset files reloaded on change; empty disables watching
	WatchPaths    []string
	WatchDebounce time.Duration

	LayoutStyle int
	Plain       bool

	// Terminal to read keys from and draw on; stdin and stdout when nil
	Input  *os.File
	Output io.Writer
}

// keyAction is what a key press asks the orchestrator to do
type keyAction int

const (
	actionNone keyAction = iota
	actionQuit
	actionNavigate
	actionToggleLayout
	actionReload
)

type keyBinding struct {
	action keyAction
	intent Intent
}

// bindKey maps a key press to an action
func bindKey(ev interaction.KeyEvent) keyBinding {
	nav := func(i Intent) keyBinding { return keyBinding{action: actionNavigate, intent: i} }

	switch ev.Type {
	case interaction.KeyEscape:
		return keyBinding{action: actionQuit}
	case interaction.KeyLeft:
		return nav(Pan{Direction: Backward})
	case interaction.KeyRight:
		return nav(Pan{Direction: Forward})
	case interaction.KeyUp:
		return nav(Step{Direction: Backward})
	case interaction.KeyDown:
		return nav(Step{Direction: Forward})
	}

	switch ev.Key {
	case 'q', 'Q', interaction.KeyInterrupt:
		return keyBinding{action: actionQuit}
	case 'h':
		return nav(Pan{Direction: Backward})
	case 'l':
		return nav(Pan{Direction: Forward})
	case 'p':
		return nav(Step{Direction: Backward})
	case 'n':
		return nav(Step{Direction: Forward})
	case 't', 'T':
		return nav(ResetToToday{})
	case 'd':
		return nav(SetScale{Scale: timelinepkg.ScaleDay})
	case 'w':
		return nav(SetScale{Scale: timelinepkg.ScaleWeek})
	case 'm':
		return nav(SetScale{Scale: timelinepkg.ScaleMonth})
	case 'y':
		return nav(SetScale{Scale: timelinepkg.ScaleYear})
	case 'v', 'V':
		return keyBinding{action: actionToggleLayout}
	case 'r', 'R':
		return keyBinding{action: actionReload}
	}
	return keyBinding{}
}

// Orchestrator runs the interactive browse loop: keys become intents, file
// changes become reloads and background fetches are applied as they land
type Orchestrator struct {
	config  BrowseConfig
	session *Session
	display *display.TerminalDisplay

	keyboard *interaction.KeyboardReader
	watcher  *monitoring.FileWatcher
}

// NewOrchestrator creates an orchestrator drawing to the terminal
func NewOrchestrator(cfg BrowseConfig, deps Dependencies) (*Orchestrator, error) {
	dcfg := &display.DisplayConfig{
		LayoutStyle: cfg.LayoutStyle,
		Plain:       cfg.Plain,
	}
	td := display.NewTerminalDisplay(dcfg)
	if cfg.Output != nil {
		td = display.NewTerminalDisplayTo(cfg.Output, dcfg, layout.TerminalSizer)
	}
	return newOrchestrator(cfg, deps, td)
}

func newOrchestrator(cfg BrowseConfig, deps Dependencies, td *display.TerminalDisplay) (*Orchestrator, error) {
	deps.Renderer = td
	s, err := NewSession(cfg.Session, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Orchestrator{config: cfg, session: s, display: td}, nil
}

// Session exposes the underlying session
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Run starts the main loop until ctx is done or the user quits
func (o *Orchestrator) Run(ctx context.Context) error {
	util.LogInfo("Starting booking timeline browser...")
	defer o.Close()

	input := o.config.Input
	if input == nil {
		input = os.Stdin
	}
	keyboard, err := interaction.NewKeyboardReaderFrom(input)
	if err != nil {
		return fmt.Errorf("failed to initialize keyboard: %w", err)
	}
	o.keyboard = keyboard

	o.display.EnterAlternateScreen()
	defer o.display.ExitAlternateScreen()

	if err := o.session.Start(ctx); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}

	if len(o.config.WatchPaths) > 0 {
		watcher, err := monitoring.NewFileWatcher(o.config.WatchPaths, o.config.WatchDebounce)
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		o.watcher = watcher
	}

	var fileEvents <-chan monitoring.FileEvent
	if o.watcher != nil {
		fileEvents = o.watcher.Events()
	}

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("Shutting down booking timeline browser...")
			return nil

		case c := <-o.session.Completions():
			if _, err := o.session.Apply(c); err != nil {
				util.LogWarn("Background fetch failed", util.F("generation", c.Generation), util.F("error", err.Error()))
			}

		case ev := <-fileEvents:
			o.handleFileChange(ctx, ev)

		case ev := <-o.keyboard.Events():
			if o.handleKeyboard(ctx, ev) {
				return nil
			}
		}
	}
}

// handleKeyboard applies one key press and reports whether to exit
func (o *Orchestrator) handleKeyboard(ctx context.Context, ev interaction.KeyEvent) bool {
	b := bindKey(ev)
	switch b.action {
	case actionQuit:
		return true
	case actionNavigate:
		if _, err := o.session.Navigate(ctx, b.intent); err != nil {
			util.LogWarn("Navigation failed", util.F("intent", b.intent.Name()), util.F("error", err.Error()))
		}
	case actionToggleLayout:
		o.display.ToggleLayout()
		o.display.Render(o.session.Current())
	case actionReload:
		if err := o.session.Reload(ctx); err != nil {
			util.LogError(fmt.Sprintf("Failed to reload data: %v", err))
		}
	}
	return false
}

func (o *Orchestrator) handleFileChange(ctx context.Context, ev monitoring.FileEvent) {
	util.LogInfo("Dataset changed, reloading", util.F("path", ev.Path), util.F("op", ev.Operation))
	if err := o.session.Reload(ctx); err != nil {
		util.LogError(fmt.Sprintf("Failed to reload data: %v", err))
	}
}

// Close releases the keyboard, watcher and session
func (o *Orchestrator) Close() {
	if o.watcher != nil {
		_ = o.watcher.Close()
		o.watcher = nil
	}
	if o.keyboard != nil {
		_ = o.keyboard.Close()
		o.keyboard = nil
	}
	o.session.Close()
}
