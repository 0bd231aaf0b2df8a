package web

import (
	"attendance-tracker/internal/attendance"
	"attendance-tracker/internal/format"
)

// page is the data handed to the layout template.
type page struct {
	State      ViewState
	Nav        []navLink
	NewURL     string
	SearchURL  string
	Dashboard  *dashboardModel
	Records    *recordsModel
	Settings   *settingsModel
	LiveReload bool
}

type statusOption struct {
	Value    string
	Label    string
	Selected bool
}

type shareRow struct {
	Label   string
	Tone    format.Tone
	Count   int
	Percent int
}

type dashboardModel struct {
	Today      attendance.DaySummary
	Shares     []shareRow
	Total      int
	RecordsURL string
}

type recordsModel struct {
	Form            *FormModel
	Table           TableModel
	StatusOptions   []statusOption
	ClearFiltersURL string
	FilterAction    string
	Query           string
}

type settingsModel struct {
	APIBase     string
	StorageKey  string
	StorageDesc string
	Endpoints   []string
	SyncMessage string
}

func newPage(st ViewState) page {
	return page{
		State:      st,
		Nav:        st.navLinks(),
		NewURL:     st.OpenNew().URL(),
		SearchURL:  "/" + string(st.View),
		LiveReload: true,
	}
}

func buildDashboard(records []attendance.Record, today string, st ViewState) *dashboardModel {
	b := attendance.Distribution(records)
	shares := make([]shareRow, 0, len(b.Shares))
	for _, sh := range b.Shares {
		meta := format.StatusMeta(string(sh.Status))
		shares = append(shares, shareRow{Label: meta.Label, Tone: meta.Tone, Count: sh.Count, Percent: sh.Percent})
	}
	return &dashboardModel{
		Today:      attendance.SummarizeDay(records, today),
		Shares:     shares,
		Total:      b.Total,
		RecordsURL: st.Navigate(ViewRecords).URL(),
	}
}

func statusOptions(selected attendance.Status) []statusOption {
	opts := []statusOption{{Value: "", Label: "All", Selected: selected == ""}}
	for _, s := range attendance.Statuses {
		opts = append(opts, statusOption{
			Value:    string(s),
			Label:    format.StatusMeta(string(s)).Label,
			Selected: s == selected,
		})
	}
	return opts
}
