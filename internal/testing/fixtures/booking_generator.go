package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
)

// Hotel is a small booking dataset in the on-disk dataset format
type Hotel struct {
	Catalog model.Catalog  `json:"catalog"`
	Records []model.Record `json:"records"`
}

// Categories of the standard catalog
var (
	Double = model.Ref{ID: 1, Name: "Double"}
	Suite  = model.Ref{ID: 2, Name: "Suite"}
)

// StandardCatalog returns two room types with a placeholder room each
func StandardCatalog() model.Catalog {
	return model.Catalog{
		{ID: Double.ID, Label: Double.Name, Resources: []model.Ref{
			{ID: 101, Name: "101"},
			{ID: 102, Name: "102"},
			{ID: 0, Name: ""},
			{ID: 103, Name: "103"},
		}},
		{ID: Suite.ID, Label: Suite.Name, Resources: []model.Ref{
			{ID: 201, Name: "201"},
			{ID: 202, Name: "202"},
		}},
	}
}

// BookingGenerator hands out bookings with increasing IDs
type BookingGenerator struct {
	nextID int64
}

func NewBookingGenerator() *BookingGenerator {
	return &BookingGenerator{nextID: 1}
}

// Stay creates a booking from check-in on day to check-out nights later
func (g *BookingGenerator) Stay(room model.Ref, category model.Ref, day time.Time, nights int, guest string) model.Record {
	rec := g.Unassigned(category, day, nights, guest)
	r := room
	rec.Resource = &r
	return rec
}

// Unassigned creates a booking with no room yet
func (g *BookingGenerator) Unassigned(category model.Ref, day time.Time, nights int, guest string) model.Record {
	id := g.nextID
	g.nextID++

	checkIn := time.Date(day.Year(), day.Month(), day.Day(), model.CheckInHour, 0, 0, 0, day.Location())
	checkOut := time.Date(day.Year(), day.Month(), day.Day()+nights, model.CheckOutHour, 0, 0, 0, day.Location())
	c := category
	return model.Record{
		ID:       id,
		Start:    checkIn.Format("2006-01-02 15:04:05"),
		Stop:     checkOut.Format("2006-01-02 15:04:05"),
		Category: &c,
		Fields: map[string]any{
			model.FieldReferenceName: guest,
			model.FieldFolioNumber:   fmt.Sprintf("F%05d", id),
			model.FieldColor:         int(id % 12),
			model.FieldState:         "confirmed",
		},
	}
}

// GenerateHotel fills each room with two stays per month for the given
// number of months starting at from, plus one unassigned booking per month.
func GenerateHotel(from time.Time, months int) Hotel {
	catalog := StandardCatalog()
	gen := NewBookingGenerator()
	var records []model.Record

	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	for m := 0; m < months; m++ {
		month := first.AddDate(0, m, 0)
		for _, group := range catalog {
			category := model.Ref{ID: group.ID, Name: group.Label}
			for i, room := range group.Resources {
				if room.ID == 0 {
					continue
				}
				records = append(records,
					gen.Stay(room, category, month.AddDate(0, 0, 2+i), 3, fmt.Sprintf("Guest %d-%s-a", m, room.Name)),
					gen.Stay(room, category, month.AddDate(0, 0, 15+i), 4, fmt.Sprintf("Guest %d-%s-b", m, room.Name)))
			}
		}
		records = append(records, gen.Unassigned(Double, month.AddDate(0, 0, 20), 2, fmt.Sprintf("Walk-in %d", m)))
	}
	return Hotel{Catalog: catalog, Records: records}
}

// WriteDataset writes the hotel as a JSON dataset file
func WriteDataset(path string, h Hotel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := sonic.ConfigStd.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
