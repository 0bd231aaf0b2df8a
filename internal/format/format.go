// Package format holds the display helpers shared by the views and the CLI.
package format

import (
	"strconv"
	"strings"
	"time"
)

// Tone is the visual emphasis used for a status badge.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
	ToneWarning Tone = "warning"
)

// Meta is the label and tone for a status code.
type Meta struct {
	Label string
	Tone  Tone
}

// StatusMeta maps a status code to its display label and tone.
func StatusMeta(status string) Meta {
	switch status {
	case "present":
		return Meta{Label: "Present", Tone: ToneSuccess}
	case "absent":
		return Meta{Label: "Absent", Tone: ToneDanger}
	case "late":
		return Meta{Label: "Late", Tone: ToneWarning}
	default:
		return Meta{Label: "Unknown", Tone: ToneWarning}
	}
}

// Initials returns up to two upper-cased leading letters of name, or "?".
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	var b strings.Builder
	for _, p := range parts {
		r := []rune(p)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

// DateLong renders a YYYY-MM-DD date as "Mon, Oct 19, 2026".
// Missing, empty or zero month and day components default to 1; input that
// cannot be read as a date is returned unchanged.
func DateLong(isoDate string) string {
	parts := strings.Split(strings.TrimSpace(isoDate), "-")
	nums := [3]int{0, 1, 1}
	for i := 0; i < len(parts) && i < 3; i++ {
		if i > 0 && parts[i] == "" {
			continue
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return isoDate
		}
		if i > 0 && n == 0 {
			n = 1
		}
		nums[i] = n
	}
	d := time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, time.Local)
	return d.Format("Mon, Jan 2, 2006")
}
