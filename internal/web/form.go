package web

import (
	"strings"

	"attendance-tracker/internal/attendance"
)

// FormMode selects between creating and editing.
type FormMode string

const (
	FormNew  FormMode = "new"
	FormEdit FormMode = "edit"
)

// FormValues are the editable fields of a record as submitted.
type FormValues struct {
	Date   string
	Name   string
	Status string
	Note   string
}

// Input converts the values for a create.
func (v FormValues) Input() attendance.Input {
	return attendance.Input{
		Date:   v.Date,
		Name:   v.Name,
		Status: attendance.Status(v.Status),
		Note:   v.Note,
	}
}

// Patch converts the values for an update; all four fields are sent.
func (v FormValues) Patch() attendance.Patch {
	status := attendance.Status(v.Status)
	return attendance.Patch{
		Date:   &v.Date,
		Name:   &v.Name,
		Status: &status,
		Note:   &v.Note,
	}
}

// FormModel is the state of the record composer.
type FormModel struct {
	Mode     FormMode
	RecordID string
	Values   FormValues
	Error    string
	Action   string
	Cancel   string
}

// NewForm seeds the composer from rec, or from defaults when rec is nil.
func NewForm(mode FormMode, rec *attendance.Record, today string) FormModel {
	f := FormModel{
		Mode:   mode,
		Values: FormValues{Date: today, Status: string(attendance.StatusPresent)},
	}
	if rec != nil {
		f.RecordID = rec.ID
		f.Values = FormValues{Date: rec.Date, Name: rec.Name, Status: string(rec.Status), Note: rec.Note}
	}
	return f
}

// Submit hands the values to save. On failure the form stays open with the
// error message; the returned bool reports success.
func (f FormModel) Submit(values FormValues, save func(FormValues) error) (FormModel, bool) {
	f.Values = values
	f.Error = ""
	if err := save(values); err != nil {
		f.Error = displayError(err)
		return f, false
	}
	return f, true
}

// Title is the card heading.
func (f FormModel) Title() string {
	if f.Mode == FormEdit {
		return "Edit record"
	}
	return "New record"
}

// SubmitLabel is the primary button text.
func (f FormModel) SubmitLabel() string {
	if f.Mode == FormEdit {
		return "Save changes"
	}
	return "Add record"
}

// displayError turns an error into a sentence for inline display.
func displayError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Unable to save."
	}
	msg = strings.ToUpper(msg[:1]) + msg[1:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
