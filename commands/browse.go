package commands

import (
	"fmt"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/application/timeline"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/presentation/layout"
	"github.com/spf13/cobra"
)

var (
	browseLayout   string
	browsePlain    bool
	browseNoWatch  bool
	browseDebounce time.Duration
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse bookings interactively",
	Long: `Opens a full-screen timeline. Months are fetched in the background as you
navigate and kept for the rest of the session.

Keys:
  ←/→ h/l   pan by days_to_move
  ↑/↓ p/n   previous/next day, week, month or year
  t         back to today
  d w m y   day, week, month or year scale
  v         switch between lanes and list layout
  r         reload from the source
  q Esc     quit`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().StringVar(&browseLayout, "layout", "lanes",
		"Layout style (lanes, list)")
	browseCmd.Flags().BoolVar(&browsePlain, "plain", false,
		"Disable colors")
	browseCmd.Flags().BoolVar(&browseNoWatch, "no-watch", false,
		"Do not reload when the data file changes")
	browseCmd.Flags().DurationVar(&browseDebounce, "watch-debounce", 500*time.Millisecond,
		"Quiet period before reloading after a data file change")
}

func layoutStyle(name string) (int, error) {
	switch name {
	case "lanes", "":
		return layout.StyleLanes, nil
	case "list":
		return layout.StyleList, nil
	default:
		return 0, fmt.Errorf("invalid layout '%s': must be either 'lanes' or 'list'", name)
	}
}

func runBrowse(cmd *cobra.Command, args []string) error {
	style, err := layoutStyle(browseLayout)
	if err != nil {
		return err
	}
	scfg, err := sessionConfig()
	if err != nil {
		return err
	}

	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	bcfg := timeline.BrowseConfig{
		Session:       scfg,
		WatchDebounce: browseDebounce,
		LayoutStyle:   style,
		Plain:         browsePlain,
	}
	if !browseNoWatch && cfg.Source.Type != source.TypeHTTP && cfg.Source.Path != "" {
		bcfg.WatchPaths = []string{cfg.Source.Path}
	}

	o, err := timeline.NewOrchestrator(bcfg, timeline.Dependencies{
		Records: src,
		Catalog: src,
		Focus:   openFocusStore(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return o.Run(ctx)
}
