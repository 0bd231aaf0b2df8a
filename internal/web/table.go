package web

import (
	"fmt"

	"attendance-tracker/internal/attendance"
	"attendance-tracker/internal/format"
)

const emptyNote = "—"

// Row is one rendered table line.
type Row struct {
	ID            string
	Name          string
	Initials      string
	Date          string
	DateLong      string
	StatusLabel   string
	StatusTone    format.Tone
	Note          string
	EditURL       string
	DeleteURL     string
	DeleteConfirm string
}

// TableModel is the filtered projection of the records.
type TableModel struct {
	Rows  []Row
	Shown int
}

// Empty reports whether the zero-state message is shown.
func (t TableModel) Empty() bool { return len(t.Rows) == 0 }

// BuildTable filters records with the state's query and status and turns
// them into rows. It never mutates anything.
func BuildTable(records []attendance.Record, st ViewState) TableModel {
	filtered := attendance.Filter(records, st.Query, st.Status)
	rows := make([]Row, 0, len(filtered))
	for _, r := range filtered {
		meta := format.StatusMeta(string(r.Status))
		note := r.Note
		if note == "" {
			note = emptyNote
		}
		rows = append(rows, Row{
			ID:            r.ID,
			Name:          r.Name,
			Initials:      format.Initials(r.Name),
			Date:          r.Date,
			DateLong:      format.DateLong(r.Date),
			StatusLabel:   meta.Label,
			StatusTone:    meta.Tone,
			Note:          note,
			EditURL:       st.Edit(r.ID).URL(),
			DeleteURL:     withQuery("/records/"+r.ID+"/delete", st.CloseComposer().Values()),
			DeleteConfirm: fmt.Sprintf("Delete record for %q on %s?", r.Name, r.Date),
		})
	}
	return TableModel{Rows: rows, Shown: len(rows)}
}
