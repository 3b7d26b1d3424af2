package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// ErrInvalidIntent is returned for intents that cannot be planned
var ErrInvalidIntent = errors.New("invalid navigation intent")

// Years beyond this distance from today are clamped on jumps
const maxYearsAhead = 50

// Direction of a pan or step
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Intent is a navigation request
type Intent interface {
	Name() string
}

// Pan shifts the visible range by Days (DaysToMove when zero)
type Pan struct {
	Days      int
	Direction Direction
}

// JumpToMonth focuses the first day of Month, in Year or the focused year
type JumpToMonth struct {
	Month time.Month
	Year  *int
}

// JumpToYear focuses Year, in Month or the current month
type JumpToYear struct {
	Year  int
	Month *time.Month
}

type ResetToToday struct{}

// SetFocusFromPersisted restores an ISO-8601 focus date; invalid values mean today
type SetFocusFromPersisted struct {
	Date string
}

type SetScale struct {
	Scale timelinepkg.Scale
}

// Step moves the focus by one scale unit
type Step struct {
	Direction Direction
}

func (Pan) Name() string                   { return "pan" }
func (JumpToMonth) Name() string           { return "jump_to_month" }
func (JumpToYear) Name() string            { return "jump_to_year" }
func (ResetToToday) Name() string          { return "reset_to_today" }
func (SetFocusFromPersisted) Name() string { return "set_focus_from_persisted" }
func (SetScale) Name() string              { return "set_scale" }
func (Step) Name() string                  { return "step" }

// TransitionKind tells the session how to reach the planned frame
type TransitionKind int

const (
	// RenderNow: the frame is usable from the cache
	RenderNow TransitionKind = iota
	// SnapBackAndFetch: render Fallback now, fill Recache, then render the frame
	SnapBackAndFetch
	// FetchThenRender: fill Recache first, then render the frame
	FetchThenRender
)

func (k TransitionKind) String() string {
	switch k {
	case RenderNow:
		return "render_now"
	case SnapBackAndFetch:
		return "snap_back_and_fetch"
	case FetchThenRender:
		return "fetch_then_render"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Frame is what the timeline shows
type Frame struct {
	Focus   time.Time
	Visible model.DateRange
	Scale   timelinepkg.Scale
}

// Transition is the planned result of one intent
type Transition struct {
	Intent Intent
	Kind   TransitionKind
	Frame
	Fallback *Frame
	Recache  model.DateRange
}

// CoverageChecker answers whether a range can be served from the cache
type CoverageChecker interface {
	IsUsable(r model.DateRange) bool
}

// NavigationController turns intents into transitions
type NavigationController struct {
	cfg      Config
	clock    util.Clock
	coverage CoverageChecker
	focus    FocusStore
}

func NewNavigationController(cfg Config, clock util.Clock, coverage CoverageChecker, focus FocusStore) *NavigationController {
	return &NavigationController{
		cfg:      cfg,
		clock:    clock,
		coverage: coverage,
		focus:    focus,
	}
}

func (nc *NavigationController) today() time.Time {
	return model.StartOfDay(nc.clock.Now().In(nc.clock.Location()))
}

func (nc *NavigationController) frame(focus time.Time, scale timelinepkg.Scale) Frame {
	return Frame{Focus: focus, Visible: scale.Range(focus), Scale: scale}
}

// Initial returns the starting frame: the persisted focus if readable, else today
func (nc *NavigationController) Initial() Frame {
	scale := nc.cfg.Scale
	if ss, ok := nc.focus.(ScaleStore); ok {
		if s, err := ss.LoadScale(); err == nil {
			scale = timelinepkg.ParseScale(s)
		}
	}

	focus := nc.today()
	if nc.focus != nil {
		persisted, err := nc.focus.LoadFocus()
		if err == nil {
			focus = persisted.In(nc.clock.Location())
		} else {
			util.LogDebug("NavigationController: no persisted focus, using today",
				util.F("error", err.Error()))
		}
	}
	return nc.frame(model.StartOfDay(focus), scale)
}

// Plan computes the transition for intent from the current frame
func (nc *NavigationController) Plan(current Frame, intent Intent) (Transition, error) {
	switch in := intent.(type) {
	case Pan:
		return nc.planPan(current, in)
	case JumpToMonth:
		if in.Month < time.January || in.Month > time.December {
			return Transition{}, fmt.Errorf("%w: month %d", ErrInvalidIntent, in.Month)
		}
		year, scale := current.Focus.Year(), current.Scale
		if in.Year != nil {
			year = nc.clampYear(*in.Year)
		} else {
			scale = timelinepkg.ScaleMonth
		}
		focus := time.Date(year, in.Month, 1, 0, 0, 0, 0, nc.clock.Location())
		return nc.recache(intent, nc.frame(focus, scale)), nil
	case JumpToYear:
		month, scale := nc.clock.Now().Month(), current.Scale
		if in.Month != nil {
			if *in.Month < time.January || *in.Month > time.December {
				return Transition{}, fmt.Errorf("%w: month %d", ErrInvalidIntent, *in.Month)
			}
			month = *in.Month
		} else {
			scale = timelinepkg.ScaleYear
		}
		focus := time.Date(nc.clampYear(in.Year), month, 1, 0, 0, 0, 0, nc.clock.Location())
		return nc.recache(intent, nc.frame(focus, scale)), nil
	case ResetToToday:
		return nc.recache(intent, nc.frame(nc.today(), current.Scale)), nil
	case SetFocusFromPersisted:
		focus, err := time.ParseInLocation(time.DateOnly, in.Date, nc.clock.Location())
		if err != nil {
			if t, err2 := time.Parse(time.RFC3339, in.Date); err2 == nil {
				focus = t.In(nc.clock.Location())
			} else {
				util.LogWarn("NavigationController: unparseable persisted focus, using today",
					util.F("value", in.Date))
				focus = nc.today()
			}
		}
		return nc.recache(intent, nc.frame(model.StartOfDay(focus), current.Scale)), nil
	case SetScale:
		return nc.recache(intent, nc.frame(current.Focus, timelinepkg.ParseScale(string(in.Scale)))), nil
	case Step:
		if in.Direction != Forward && in.Direction != Backward {
			return Transition{}, fmt.Errorf("%w: direction %d", ErrInvalidIntent, in.Direction)
		}
		focus := current.Scale.Step(current.Focus, int(in.Direction))
		return nc.recache(intent, nc.frame(focus, current.Scale)), nil
	case nil:
		return Transition{}, fmt.Errorf("%w: nil", ErrInvalidIntent)
	default:
		return Transition{}, fmt.Errorf("%w: %s", ErrInvalidIntent, intent.Name())
	}
}

func (nc *NavigationController) recache(intent Intent, f Frame) Transition {
	return Transition{
		Intent:  intent,
		Kind:    FetchThenRender,
		Frame:   f,
		Recache: f.Visible.ExpandMonths(1),
	}
}

func (nc *NavigationController) planPan(current Frame, p Pan) (Transition, error) {
	if p.Direction != Forward && p.Direction != Backward {
		return Transition{}, fmt.Errorf("%w: direction %d", ErrInvalidIntent, p.Direction)
	}
	days := p.Days
	if days == 0 {
		days = nc.cfg.DaysToMove
	}
	if days < 0 {
		return Transition{}, fmt.Errorf("%w: pan by %d days", ErrInvalidIntent, days)
	}
	delta := days * int(p.Direction)

	target := Frame{
		Focus: current.Focus.AddDate(0, 0, delta),
		Visible: model.DateRange{
			Start: current.Visible.Start.AddDate(0, 0, delta),
			End:   current.Visible.End.AddDate(0, 0, delta),
		},
		Scale: current.Scale,
	}

	// Crossing into another month shows that whole month, in both directions
	if model.MonthKeyOf(target.Visible.Start) != model.MonthKeyOf(current.Visible.Start) {
		month := model.MonthKeyOf(target.Visible.Start)
		target.Focus = month.Start(nc.clock.Location())
		target.Visible = month.Range(nc.clock.Location())
	}

	if nc.coverage.IsUsable(target.Visible) {
		return Transition{Intent: p, Kind: RenderNow, Frame: target}, nil
	}

	fallbackFocus := model.StartOfMonth(current.Visible.Start)
	fallback := nc.frame(fallbackFocus, current.Scale)
	return Transition{
		Intent:   p,
		Kind:     SnapBackAndFetch,
		Frame:    target,
		Fallback: &fallback,
		Recache:  target.Visible.ExpandMonths(1),
	}, nil
}

func (nc *NavigationController) clampYear(year int) int {
	now := nc.clock.Now().Year()
	switch {
	case year < now:
		return now
	case year > now+maxYearsAhead:
		return now + maxYearsAhead
	default:
		return year
	}
}

// Persist stores the frame's focus and scale; failures are logged only
func (nc *NavigationController) Persist(f Frame) {
	if nc.focus == nil {
		return
	}
	if err := nc.focus.SaveFocus(f.Focus); err != nil {
		util.LogWarn("NavigationController: failed to persist focus",
			util.F("focus", f.Focus.Format(time.DateOnly)),
			util.F("error", err.Error()))
	}
	if ss, ok := nc.focus.(ScaleStore); ok {
		if err := ss.SaveScale(string(f.Scale)); err != nil {
			util.LogWarn("NavigationController: failed to persist scale",
				util.F("scale", string(f.Scale)),
				util.F("error", err.Error()))
		}
	}
}
