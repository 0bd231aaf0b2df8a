package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-tracker/internal/attendance"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("STORAGE_KEY", "")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("ATTENDANCE_API_BASE", "")
	t.Setenv("ATTENDANCE_BACKEND_URL", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := run(t, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestRecordLifecycle(t *testing.T) {
	setupEnv(t)

	var created attendance.Record
	runJSON(t, &created, "add", "--name", "  Taylor Smith ", "--status", "late", "--date", "2026-10-19")
	assert.Equal(t, "Taylor Smith", created.Name)
	assert.Equal(t, attendance.StatusLate, created.Status)
	require.NotEmpty(t, created.ID)

	var all []attendance.Record
	runJSON(t, &all, "list")
	require.Len(t, all, 3, "seed records are persisted with the first write")
	assert.Equal(t, created.ID, all[0].ID)

	var updated attendance.Record
	runJSON(t, &updated, "update", created.ID, "--note", "Bus")
	assert.Equal(t, "Bus", updated.Note)
	assert.Equal(t, attendance.StatusLate, updated.Status, "untouched flags are not patched")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	var late []attendance.Record
	runJSON(t, &late, "list", "--status", "late", "--query", "BUS")
	require.Len(t, late, 1)
	assert.Equal(t, created.ID, late[0].ID)

	_, err := run(t, "delete", created.ID)
	require.NoError(t, err)
	out, err := run(t, "list", "--query", "taylor")
	require.NoError(t, err)
	assert.Contains(t, out, "No records match your filters.")

	_, err = run(t, "delete", created.ID)
	assert.NoError(t, err, "deleting a missing id is a no-op")
}

func TestAddAndUpdateValidation(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "add", "--status", "present")
	require.Error(t, err)
	assert.ErrorIs(t, err, attendance.ErrValidation)
	assert.Contains(t, err.Error(), "name is required")

	_, err = run(t, "update", "missing-id", "--note", "x")
	assert.ErrorIs(t, err, attendance.ErrNotFound)

	_, err = run(t, "list", "--status", "sleeping")
	assert.Error(t, err)

	_, err = run(t, "list", "--format", "yaml")
	assert.Error(t, err)
}

func TestClearRequiresYes(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "add", "--name", "Robin")
	require.NoError(t, err)

	_, err = run(t, "clear")
	assert.ErrorIs(t, err, errNotConfirmed)

	out, err := run(t, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "All records removed.")

	var recs []attendance.Record
	runJSON(t, &recs, "list")
	assert.Empty(t, recs)
}

func TestSummaryAndSync(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total marked")
	assert.Contains(t, out, "All records (2)")

	var report summaryReport
	runJSON(t, &report, "summary")
	assert.Equal(t, 2, report.Today.Total)
	assert.Equal(t, 1, report.Today.Present)
	assert.Equal(t, 1, report.Today.Late)

	out, err = run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "API base not configured; using local storage.")

	t.Setenv("ATTENDANCE_BACKEND_URL", " https://api.example.test ")
	var res attendance.SyncResult
	runJSON(t, &res, "sync")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "https://api.example.test")
}

func TestRecordsTableAlignsWideNames(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&RootOptions{Format: "text"}, &out)
	require.NoError(t, p.records([]attendance.Record{
		{ID: "r1", Date: "2026-10-19", Name: "山田太郎", Status: attendance.StatusPresent},
		{ID: "r2", Date: "2026-10-19", Name: "Alex Jo", Status: attendance.StatusLate, Note: "Bus"},
	}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	column := func(line, label string) int {
		idx := strings.Index(line, label)
		require.GreaterOrEqual(t, idx, 0, line)
		return lipgloss.Width(line[:idx])
	}
	status := column(lines[0], "STATUS")
	assert.Equal(t, status, column(lines[1], "Present"))
	assert.Equal(t, status, column(lines[2], "Late"))
	assert.Equal(t, column(lines[0], "NOTE"), column(lines[2], "Bus"))
}
