package formatter

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

type JSONFormatter struct {
	w io.Writer
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{w: w}
}

type jsonGroup struct {
	Label      string `json:"label"`
	Category   string `json:"category"`
	Resource   string `json:"resource,omitempty"`
	Unassigned bool   `json:"unassigned,omitempty"`
	Bookings   []Row  `json:"bookings"`
}

type jsonView struct {
	Generation    uint64      `json:"generation"`
	Focus         string      `json:"focus"`
	Scale         string      `json:"scale"`
	Start         string      `json:"start"`
	End           string      `json:"end"`
	Bookings      int         `json:"bookings"`
	CoveredMonths []string    `json:"covered_months"`
	Groups        []jsonGroup `json:"groups"`
}

func (f *JSONFormatter) Format(view timelinepkg.View) error {
	out := jsonView{
		Generation:    view.Generation,
		Focus:         view.Focus.Format(time.DateOnly),
		Scale:         string(view.Scale),
		Start:         view.Visible.Start.Format(time.RFC3339),
		End:           view.Visible.End.Format(time.RFC3339),
		Bookings:      len(view.Entries),
		CoveredMonths: make([]string, 0, len(view.CoveredMonths)),
		Groups:        make([]jsonGroup, 0, len(view.Groups)),
	}
	for _, k := range view.CoveredMonths {
		out.CoveredMonths = append(out.CoveredMonths, k.String())
	}
	for _, g := range view.Groups {
		jg := jsonGroup{
			Label:      g.Label(),
			Category:   g.CategoryLabel,
			Resource:   g.ResourceLabel,
			Unassigned: g.Unassigned,
			Bookings:   []Row{},
		}
		for _, e := range view.GroupEntries(g) {
			jg.Bookings = append(jg.Bookings, newRow(jg.Label, e))
		}
		out.Groups = append(out.Groups, jg)
	}

	encoder := sonic.ConfigStd.NewEncoder(f.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
