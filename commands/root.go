package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/application/timeline"
	"github.com/penwyp/go-booking-timeline/internal/config"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/data/state"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug bool

	// Configuration
	configFile string

	// Data source overrides
	sourceType string
	dataPath   string
	sourceURL  string
	timezone   string

	// Query filters, field=value or field!=value
	filters []string

	rootCmd = &cobra.Command{
		Use:   "booking-timeline",
		Short: "Browse hotel bookings on a month-cached timeline",
		Long: `booking-timeline shows room bookings on a scrollable timeline.

Bookings are fetched month by month from a SQLite database, a JSON dataset
file or a remote booking API, and kept in memory while you navigate.

Examples:
  booking-timeline browse                               # Interactive timeline
  booking-timeline view --date 2024-03-01 -o json       # Print one month as JSON
  booking-timeline view --scale week --filter state=confirmed
  booking-timeline import hotel.json                    # Load a dataset into SQLite
  booking-timeline serve --addr :8080                   # Expose the source over HTTP
  booking-timeline config init                          # Write the default config file`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// cfg is the configuration after flag overrides, set by setup
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigFile,
		"Config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")

	rootCmd.PersistentFlags().StringVar(&sourceType, "source", "",
		"Data source (sqlite, json, http)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "",
		"SQLite database or JSON dataset path")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "url", "",
		"Booking API base URL for the http source")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "",
		"Timezone setting (e.g., Europe/Madrid, UTC)")
	rootCmd.PersistentFlags().StringArrayVar(&filters, "filter", nil,
		"Booking filter, field=value or field!=value (repeatable)")
}

// setup loads the config, applies flag overrides and starts logging
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyOverrides(cmd, loaded)
	loaded.Normalize()
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logLevel := cfg.LogLevel
	if debug {
		logLevel = "debug"
	}
	if cfg.LogFile != "" {
		if err := util.EnsureDir(filepath.Dir(cfg.LogFile)); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := util.InitLogger(logLevel, cfg.LogFile, debug); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return util.InitializeTimeProvider(cfg.Timeline.Timezone)
}

func applyOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Source.Type = sourceType
	}
	if flags.Changed("data") {
		c.Source.Path = dataPath
		if !flags.Changed("source") && strings.EqualFold(filepath.Ext(dataPath), ".json") {
			c.Source.Type = source.TypeJSON
		}
	}
	if flags.Changed("url") {
		c.Source.URL = sourceURL
		if !flags.Changed("source") {
			c.Source.Type = source.TypeHTTP
		}
	}
	if flags.Changed("timezone") {
		c.Timeline.Timezone = timezone
	}
}

func Execute() error {
	defer util.CloseLogger()
	return rootCmd.Execute()
}

// signalContext is cancelled on interrupt or terminate
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func location() *time.Location {
	return util.GetTimeProvider().Location()
}

func openSource() (source.Source, error) {
	return source.Create(source.Config{
		Type:     cfg.Source.Type,
		Path:     cfg.Source.Path,
		URL:      cfg.Source.URL,
		Timeout:  cfg.Source.Timeout,
		Location: location(),
	})
}

func openFocusStore() *state.FocusStore {
	return state.NewFocusStore(cfg.StateDir, location())
}

// parseFilters turns field=value and field!=value into conditions
func parseFilters(raw []string) ([]model.Condition, error) {
	conds := make([]model.Condition, 0, len(raw))
	for _, f := range raw {
		op := source.OpEq
		field, value, ok := strings.Cut(f, "!=")
		if ok {
			op = source.OpNe
		} else if field, value, ok = strings.Cut(f, "="); !ok {
			return nil, fmt.Errorf("invalid filter %q: expected field=value", f)
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid filter %q: empty field", f)
		}
		conds = append(conds, model.Condition{Field: field, Op: op, Value: strings.TrimSpace(value)})
	}
	return conds, nil
}

func sessionConfig() (timeline.Config, error) {
	conds, err := parseFilters(filters)
	if err != nil {
		return timeline.Config{}, err
	}
	return timeline.Config{
		DaysToMove:       cfg.Timeline.DaysToMove,
		Scale:            timelinepkg.ParseScale(cfg.Timeline.Scale),
		MonthsAhead:      cfg.Timeline.MonthsAhead,
		MonthsBehind:     cfg.Timeline.MonthsBehind,
		Timezone:         cfg.Timeline.Timezone,
		ThrottleInterval: cfg.Timeline.ThrottleInterval,
		PageSize:         cfg.Timeline.PageSize,
		Query:            model.QueryContext{Filters: conds},
	}, nil
}
