package source

import (
	"fmt"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/util"
)

// Config selects and parameterizes a data source
type Config struct {
	Type     string
	Path     string
	URL      string
	Timeout  time.Duration
	Location *time.Location
}

// Create builds the data source named by cfg.Type
func Create(cfg Config) (Source, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite source requires a database path")
		}
		util.LogDebugf("Opening sqlite source at %s", cfg.Path)
		return NewSQLiteSource(cfg.Path, cfg.Location)
	case TypeJSON:
		if cfg.Path == "" {
			return nil, fmt.Errorf("json source requires a dataset path")
		}
		util.LogDebugf("Using json dataset %s", cfg.Path)
		return NewJSONFileSource(cfg.Path, cfg.Location), nil
	case TypeHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("http source requires a base url")
		}
		util.LogDebugf("Using booking API at %s", cfg.URL)
		return NewHTTPSource(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown data source: %s", cfg.Type)
	}
}
