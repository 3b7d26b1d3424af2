// Package source provides the booking and catalog data sources the cache
// fills from: a SQLite database, a JSON dataset file or a remote HTTP API.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
)

// Source type identifiers accepted by Create
const (
	TypeSQLite = "sqlite"
	TypeJSON   = "json"
	TypeHTTP   = "http"
)

// Layout used for boundaries handed to and stored by sources
const DateTimeLayout = "2006-01-02 15:04:05"

var (
	// ErrNotFound is returned when a single record lookup misses
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable is returned when the backing store cannot be reached or read
	ErrUnavailable = errors.New("data source unavailable")
)

// FetchRequest asks for every record with start <= Range.End and
// stop >= Range.Start, narrowed by the query context filters.
type FetchRequest struct {
	Range   model.DateRange
	Context model.QueryContext
}

// FetchResponse carries one page of records and the total match count
type FetchResponse struct {
	Count   int            `json:"count"`
	Records []model.Record `json:"records"`
}

// RecordSource fetches bookings
type RecordSource interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
	FetchOne(ctx context.Context, id int64) (model.Record, error)
}

// CatalogSource supplies the resource catalog
type CatalogSource interface {
	Catalog(ctx context.Context) (model.Catalog, error)
}

// Source is a complete data backend
type Source interface {
	RecordSource
	CatalogSource
	Name() string
	Close() error
}

// Dataset is the portable form of a booking database
type Dataset struct {
	Catalog model.Catalog  `json:"catalog"`
	Records []model.Record `json:"records"`
}

// rangeBounds renders the request range in the stored datetime layout
func rangeBounds(r model.DateRange, loc *time.Location) (string, string) {
	return r.Start.In(loc).Format(DateTimeLayout), r.End.In(loc).Format(DateTimeLayout)
}
