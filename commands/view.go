package commands

import (
	"fmt"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/application/timeline"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/presentation/formatter"
	"github.com/spf13/cobra"
)

var (
	viewOutput string
	viewDate   string
	viewScale  string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the bookings of one timeline frame",
	Long: `Loads the frame around --date (or the remembered focus) and prints its
bookings grouped by room type and room.`,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().StringVarP(&viewOutput, "output", "o", formatter.FormatTable,
		"Output format (table, json, csv)")
	viewCmd.Flags().StringVar(&viewDate, "date", "",
		"Focus date, YYYY-MM-DD (default: remembered focus or today)")
	viewCmd.Flags().StringVar(&viewScale, "scale", "",
		"Visible span (day, week, month, year)")
}

func runView(cmd *cobra.Command, args []string) error {
	if viewDate != "" {
		if _, err := time.Parse(time.DateOnly, viewDate); err != nil {
			return fmt.Errorf("invalid date '%s': expected YYYY-MM-DD", viewDate)
		}
	}
	f, err := formatter.New(viewOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	scfg, err := sessionConfig()
	if err != nil {
		return err
	}
	if viewScale != "" {
		scfg.Scale = timelinepkg.ParseScale(viewScale)
	}

	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	deps := timeline.Dependencies{Records: src, Catalog: src}
	if viewDate == "" {
		deps.Focus = openFocusStore()
	}

	s, err := timeline.NewSession(scfg, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return err
	}
	if viewDate != "" {
		if _, err := s.Navigate(ctx, timeline.SetFocusFromPersisted{Date: viewDate}); err != nil {
			return err
		}
	}
	if viewScale != "" && s.Frame().Scale != scfg.Scale {
		if _, err := s.Navigate(ctx, timeline.SetScale{Scale: scfg.Scale}); err != nil {
			return err
		}
	}
	if err := s.Settle(ctx); err != nil {
		return err
	}

	view := s.Current()
	if view.Err != nil {
		return view.Err
	}
	return f.Format(view)
}
