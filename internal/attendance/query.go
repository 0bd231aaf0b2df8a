package attendance

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// LocalDate formats t as YYYY-MM-DD in the local time zone.
func LocalDate(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// Filter keeps records whose name or note contains query (NFC normalized and
// Unicode case folded, surrounding whitespace ignored) and whose status equals status. An
// empty query or status matches everything.
func Filter(records []Record, query string, status Status) []Record {
	// Casers are stateful; one per call keeps Filter safe for concurrent use.
	fold := cases.Fold()
	canon := func(s string) string { return norm.NFC.String(fold.String(s)) }
	q := canon(strings.TrimSpace(query))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q != "" && !strings.Contains(canon(r.Name), q) && !strings.Contains(canon(r.Note), q) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DaySummary tallies the records of one date by status.
type DaySummary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// SummarizeDay counts records dated date.
func SummarizeDay(records []Record, date string) DaySummary {
	var s DaySummary
	for _, r := range records {
		if r.Date != date {
			continue
		}
		s.Total++
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusLate:
			s.Late++
		case StatusAbsent:
			s.Absent++
		}
	}
	return s
}

// Share is one status row of a Breakdown.
type Share struct {
	Status  Status `json:"status"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Breakdown is the all-time status distribution.
type Breakdown struct {
	Shares []Share `json:"shares"`
	Total  int     `json:"total"`
}

// Distribution tallies all records by status with rounded percentages.
// Records with an unknown status are ignored.
func Distribution(records []Record) Breakdown {
	counts := make(map[Status]int, len(Statuses))
	for _, r := range records {
		if r.Status.Valid() {
			counts[r.Status]++
		}
	}
	var b Breakdown
	for _, st := range Statuses {
		b.Total += counts[st]
	}
	for _, st := range Statuses {
		pct := 0
		if b.Total > 0 {
			pct = int(math.Round(float64(counts[st]) / float64(b.Total) * 100))
		}
		b.Shares = append(b.Shares, Share{Status: st, Count: counts[st], Percent: pct})
	}
	return b
}
