package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"attendance-tracker/internal/attendance"
	"attendance-tracker/internal/format"
)

// printer writes command results as text or indented JSON.
type printer struct {
	json bool
	w    io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) printer {
	return printer{json: opts.Format == "json", w: w}
}

func (p printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) records(recs []attendance.Record) error {
	if p.json {
		return p.writeJSON(recs)
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(p.w, "No records match your filters.")
		return err
	}
	t := newTextTable("ID", "DATE", "NAME", "STATUS", "NOTE")
	for _, r := range recs {
		note := r.Note
		if note == "" {
			note = "-"
		}
		t.AddRow(r.ID, r.Date, r.Name, format.StatusMeta(string(r.Status)).Label, note)
	}
	_, err := io.WriteString(p.w, t.View())
	return err
}

func (p printer) record(r attendance.Record) error {
	if p.json {
		return p.writeJSON(r)
	}
	_, err := fmt.Fprintf(p.w, "%s  %s  %s  %s\n", r.ID, format.DateLong(r.Date), r.Name, format.StatusMeta(string(r.Status)).Label)
	return err
}

type summaryReport struct {
	Date         string                `json:"date"`
	Today        attendance.DaySummary `json:"today"`
	Distribution attendance.Breakdown  `json:"distribution"`
}

func (p printer) summary(s summaryReport) error {
	if p.json {
		return p.writeJSON(s)
	}
	today := newTextTable()
	today.AddRow("  Total marked", fmt.Sprint(s.Today.Total))
	today.AddRow("  Present", fmt.Sprint(s.Today.Present))
	today.AddRow("  Late", fmt.Sprint(s.Today.Late))
	today.AddRow("  Absent", fmt.Sprint(s.Today.Absent))

	all := newTextTable()
	for _, sh := range s.Distribution.Shares {
		all.AddRow("  "+format.StatusMeta(string(sh.Status)).Label, fmt.Sprint(sh.Count), fmt.Sprintf("%d%%", sh.Percent))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today (%s)\n", format.DateLong(s.Date))
	sb.WriteString(today.View())
	fmt.Fprintf(&sb, "All records (%d)\n", s.Distribution.Total)
	sb.WriteString(all.View())
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func (p printer) message(v any, msg string) error {
	if p.json {
		return p.writeJSON(v)
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

// textTable lays out rows in columns sized by terminal cell width, so wide
// characters keep later columns aligned.
type textTable struct {
	headers []string
	rows    [][]string
}

func newTextTable(headers ...string) *textTable {
	return &textTable{headers: headers}
}

// AddRow adds a row to the table.
func (t *textTable) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// View renders the table, one line per row, columns separated by two spaces.
func (t *textTable) View() string {
	lines := t.rows
	if len(t.headers) > 0 {
		lines = append([][]string{t.headers}, t.rows...)
	}

	var widths []int
	for _, row := range lines {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, row := range lines {
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(lipgloss.NewStyle().Width(widths[i] + 2).Render(cell))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
