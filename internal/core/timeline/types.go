package timeline

import (
	"iter"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
)

// RecordSet is the read side of the interval store
type RecordSet interface {
	All() iter.Seq[model.Record]
}

// Entry is a record together with its parsed interval
type Entry struct {
	Record   model.Record
	Interval model.DateRange
}
