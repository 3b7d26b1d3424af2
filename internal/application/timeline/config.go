package timeline

import (
	"fmt"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// Config contains the per-session navigation and cache settings
type Config struct {
	// Navigation
	DaysToMove int
	Scale      timelinepkg.Scale

	// Initial cache window around today, in months
	MonthsAhead  int
	MonthsBehind int

	// Display
	Timezone string

	// Pan throttle; negative disables throttling
	ThrottleInterval time.Duration

	// Page size used when filling the cache, 0 fetches everything at once
	PageSize int

	// Filters and shape of every fetch
	Query model.QueryContext
}

// Validate fills defaults and rejects out-of-range values
func (c *Config) Validate() error {
	if c.DaysToMove < 0 {
		return fmt.Errorf("days to move must be positive, got %d", c.DaysToMove)
	}
	if c.MonthsAhead < 0 || c.MonthsBehind < 0 {
		return fmt.Errorf("months ahead/behind must not be negative, got %d/%d", c.MonthsAhead, c.MonthsBehind)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", c.PageSize)
	}
	if c.DaysToMove == 0 {
		c.DaysToMove = 7
	}
	if c.Scale == "" {
		c.Scale = timelinepkg.ScaleMonth
	}
	c.Scale = timelinepkg.ParseScale(string(c.Scale))
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.ThrottleInterval == 0 {
		c.ThrottleInterval = 100 * time.Millisecond
	}
	return nil
}
