package commands

import (
	"github.com/penwyp/go-booking-timeline/internal/transport/httpapi"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured source as a booking API",
	Long: `Exposes the configured source over HTTP so another booking-timeline can
read it with --url.

Routes:
  POST /records/search
  GET  /records/{id}
  GET  /catalog`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080",
		"Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return httpapi.NewServer(serveAddr, src).Run(ctx)
}
