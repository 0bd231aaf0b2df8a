package attendance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the attendance state of a record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Statuses lists the valid statuses in display order.
var Statuses = []Status{StatusPresent, StatusLate, StatusAbsent}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusLate
}

// Record is one attendance entry for a person on a date.
type Record struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Timestamp is a record time stored as RFC 3339 text. Stored text that does
// not parse is kept in Raw and written back unchanged.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// At wraps t, normalized to UTC.
func At(t time.Time) Timestamp { return Timestamp{Time: t.UTC()} }

func parseTimestamp(s string) Timestamp {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t.UTC()}
	}
	return Timestamp{Raw: s}
}

// Equal compares parsed times, or raw text when either side did not parse.
func (ts Timestamp) Equal(o Timestamp) bool {
	if ts.Raw != "" || o.Raw != "" {
		return ts.Raw == o.Raw
	}
	return ts.Time.Equal(o.Time)
}

// After reports whether ts is later than o. Unparsed values sort first.
func (ts Timestamp) After(o Timestamp) bool { return ts.Time.After(o.Time) }

func (ts Timestamp) String() string {
	if ts.Raw != "" || ts.Time.IsZero() {
		return ts.Raw
	}
	return ts.Time.Format(time.RFC3339Nano)
}

// MarshalJSON writes the timestamp as a JSON string.
func (ts Timestamp) MarshalJSON() ([]byte, error) { return json.Marshal(ts.String()) }

// UnmarshalJSON accepts any JSON scalar; see looseString.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = parseTimestamp(looseString(b))
	return nil
}

// UnmarshalJSON reads a stored record leniently: every field is expected to
// be a string, but numbers and booleans keep their text and null or missing
// fields are empty. Only a value that is not an object is an error.
func (r *Record) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("record is null")
	}
	*r = Record{
		ID:        looseString(fields["id"]),
		Date:      looseString(fields["date"]),
		Name:      looseString(fields["name"]),
		Status:    Status(looseString(fields["status"])),
		Note:      looseString(fields["note"]),
		CreatedAt: parseTimestamp(looseString(fields["createdAt"])),
		UpdatedAt: parseTimestamp(looseString(fields["updatedAt"])),
	}
	return nil
}

// looseString returns the text of a JSON scalar. Strings are unquoted, null
// and absent values are empty, and anything else keeps its literal text.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Snapshot is the persisted aggregate, newest record first.
type Snapshot struct {
	Records []Record `json:"records"`
}

// Input carries the fields for a new record. Empty Date and Status fall back
// to today and present.
type Input struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Note   string `json:"note"`
}

// Patch carries the fields to change on an existing record; nil means keep.
type Patch struct {
	Date   *string `json:"date,omitempty"`
	Name   *string `json:"name,omitempty"`
	Status *Status `json:"status,omitempty"`
	Note   *string `json:"note,omitempty"`
}

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an update targets an unknown id.
	ErrNotFound = errors.New("record not found")
)

// ValidationError describes the first invalid field of a record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// recordRules mirrors the checks applied on create and update. Field order
// decides which problem is reported first.
type recordRules struct {
	Name   string `validate:"required"`
	Status string `validate:"oneof=present absent late"`
	Date   string `validate:"required,datetime=2006-01-02"`
}

var validate = validator.New()

var fieldMessages = map[string]string{
	"Name":   "name is required",
	"Status": "invalid status",
	"Date":   "date must be in YYYY-MM-DD format",
}

func validateRecord(r Record) error {
	err := validate.Struct(recordRules{Name: r.Name, Status: string(r.Status), Date: r.Date})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := fieldErrs[0].Field()
		return &ValidationError{Field: strings.ToLower(field), Message: fieldMessages[field]}
	}
	return fmt.Errorf("validate record: %w", err)
}

// apply merges p over r. Name is trimmed; other fields are taken as given.
func (p Patch) apply(r Record) Record {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	return r
}
