package commands

import (
	"fmt"

	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <dataset.json>",
	Short: "Import a JSON dataset into the SQLite database",
	Long: `Reads a dataset file with a catalog and bookings and upserts it into the
SQLite database named by --data or source.path.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	dbPath := cfg.Source.Path
	if cfg.Source.Type != source.TypeSQLite {
		return fmt.Errorf("import needs a sqlite source, got '%s'", cfg.Source.Type)
	}

	ds, err := source.LoadDataset(util.ExpandPath(args[0]))
	if err != nil {
		return err
	}

	db, err := source.NewSQLiteSource(dbPath, location())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	n, err := db.Import(ctx, ds)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d bookings and %d room types into %s\n", n, len(ds.Catalog), dbPath)
	return nil
}
