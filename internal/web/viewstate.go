package web

import (
	"net/url"
	"strings"

	"attendance-tracker/internal/attendance"
)

// View is one of the navigable screens.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewRecords   View = "records"
	ViewSettings  View = "settings"
)

// navOrder is the sidebar order.
var navOrder = []struct {
	View  View
	Label string
	Icon  string
}{
	{ViewDashboard, "Dashboard", "dashboard"},
	{ViewRecords, "Records", "records"},
	{ViewSettings, "Settings", "settings"},
}

func parseView(s string) View {
	switch View(s) {
	case ViewRecords, ViewSettings:
		return View(s)
	default:
		return ViewDashboard
	}
}

// ViewState is the ephemeral UI state. It lives in the URL and is never
// persisted; any view can be reached from any other.
type ViewState struct {
	View     View
	Query    string
	Status   attendance.Status
	Composer bool
	EditID   string
}

// ParseViewState reads the state for view from query parameters. Unknown
// views fall back to the dashboard and unknown statuses to "all".
func ParseViewState(view string, q url.Values) ViewState {
	st := ViewState{
		View:  parseView(view),
		Query: q.Get("q"),
	}
	if s := attendance.Status(q.Get("status")); s.Valid() {
		st.Status = s
	}
	switch q.Get("compose") {
	case "new":
		st.Composer = true
	case "edit":
		if id := strings.TrimSpace(q.Get("id")); id != "" {
			st.Composer = true
			st.EditID = id
		}
	}
	return st
}

// Navigate switches to another view, keeping search and filter.
func (v ViewState) Navigate(to View) ViewState {
	v.View = to
	return v
}

// OpenNew opens an empty composer on the records view.
func (v ViewState) OpenNew() ViewState {
	v.View = ViewRecords
	v.Composer = true
	v.EditID = ""
	return v
}

// Edit opens the composer for the record with id on the records view.
func (v ViewState) Edit(id string) ViewState {
	v.View = ViewRecords
	v.Composer = true
	v.EditID = id
	return v
}

// CloseComposer hides the composer and drops the edit target.
func (v ViewState) CloseComposer() ViewState {
	v.Composer = false
	v.EditID = ""
	return v
}

// ClearFilters resets the search text and status filter.
func (v ViewState) ClearFilters() ViewState {
	v.Query = ""
	v.Status = ""
	return v
}

// Values encodes everything except the view.
func (v ViewState) Values() url.Values {
	q := url.Values{}
	if v.Query != "" {
		q.Set("q", v.Query)
	}
	if v.Status != "" {
		q.Set("status", string(v.Status))
	}
	if v.Composer {
		if v.EditID != "" {
			q.Set("compose", "edit")
			q.Set("id", v.EditID)
		} else {
			q.Set("compose", "new")
		}
	}
	return q
}

// URL is the address that renders this state.
func (v ViewState) URL() string {
	return withQuery("/"+string(v.View), v.Values())
}

func withQuery(path string, q url.Values) string {
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// Title is the top bar heading.
func (v ViewState) Title() string {
	switch v.View {
	case ViewRecords:
		return "Records"
	case ViewSettings:
		return "Settings"
	default:
		return "Dashboard"
	}
}

// Subtitle is the line under the heading.
func (v ViewState) Subtitle() string {
	switch v.View {
	case ViewRecords:
		return "Create, search, and manage records"
	case ViewSettings:
		return "Environment + data controls"
	default:
		return "Quick overview for today"
	}
}

// ShowSearch reports whether the top bar search box is shown.
func (v ViewState) ShowSearch() bool { return v.View != ViewSettings }

// navLink is a rendered sidebar entry.
type navLink struct {
	Label  string
	Icon   string
	URL    string
	Active bool
}

func (v ViewState) navLinks() []navLink {
	links := make([]navLink, 0, len(navOrder))
	for _, n := range navOrder {
		links = append(links, navLink{
			Label:  n.Label,
			Icon:   n.Icon,
			URL:    v.Navigate(n.View).CloseComposer().URL(),
			Active: v.View == n.View,
		})
	}
	return links
}
