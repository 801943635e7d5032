package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftplan/internal/calendar"
	"shiftplan/internal/config"
	"shiftplan/internal/dates"
	"shiftplan/internal/model"
	"shiftplan/internal/session"
	"shiftplan/internal/store"
	"shiftplan/internal/wizard"
)

type harness struct {
	sess *session.Session
	out  *bytes.Buffer
	dir  string
}

// run feeds script to a fresh shell and returns the harness after it ends.
func run(t *testing.T, script string, interactive bool) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.OpenFileStore(filepath.Join(dir, "templates.yaml"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Upsert(ctx, model.ShiftTemplate{
		ID: "early", Summary: "Early", CalendarID: "work",
		Times: &model.ShiftTimes{Start: dates.TimeOfDay{Hour: 6}, End: dates.TimeOfDay{Hour: 14}},
	}))
	require.NoError(t, st.Upsert(ctx, model.ShiftTemplate{ID: "off", Summary: "Off", CalendarID: "work"}))

	out := &bytes.Buffer{}
	term := NewTerminal(strings.NewReader(script), out, interactive)
	gate := NewPromptGate(term, false)
	sink := calendar.NewDirSink(filepath.Join(dir, "calendars"), []config.CalendarEntry{{ID: "work", Name: "Work", Primary: true}}, gate)
	sess := session.New(st, &calendar.Importer{Sink: sink, Gate: gate, Location: time.UTC}, session.Options{Location: time.UTC, PresetMonths: 3})
	t.Cleanup(sess.Close)

	require.NoError(t, NewShell(sess, term).Run(ctx))
	return &harness{sess: sess, out: out, dir: dir}
}

func TestShellEntersEditsExportsAndImports(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "out.ics")
	script := strings.Join([]string{
		"r 2025-01-01 2025-01-03",
		"1",
		"s",
		"2",
		"e 2",
		"1",
		"x " + exportPath,
		"i",
		"y",
		"q",
	}, "\n") + "\n"

	h := run(t, script, false)
	output := h.out.String()

	assert.NotContains(t, output, "error:")
	assert.Contains(t, output, "exported to "+exportPath)
	assert.Contains(t, output, "Allow shiftplan to write to your calendars?")
	assert.Contains(t, output, "imported 3 shifts")
	assert.Equal(t, wizard.KindSelectingDateRange, h.sess.State().Kind())

	exported, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(exported), "BEGIN:VEVENT"))

	written, err := os.ReadFile(filepath.Join(h.dir, "calendars", "work.ics"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(written), "SUMMARY:Early"))
	assert.Equal(t, 1, strings.Count(string(written), "SUMMARY:Off"))
}

func TestShellDeniedImportKeepsReview(t *testing.T) {
	script := "r 2025-01-01 2025-01-01\n2\ni\nn\ni\nno\n"

	h := run(t, script, false)

	assert.Equal(t, 2, strings.Count(h.out.String(), "error: calendar access was not granted"))
	review, ok := h.sess.State().(wizard.Reviewing)
	require.True(t, ok)
	assert.Len(t, review.Entered, 1)

	_, err := os.Stat(filepath.Join(h.dir, "calendars", "work.ics"))
	assert.True(t, os.IsNotExist(err))
}

func TestShellReportsErrorsAndKeepsGoing(t *testing.T) {
	h := run(t, "u\nzzz\n9\nr 2025-01-05 2025-01-01\nr 2025-01-01\n", false)
	output := h.out.String()

	assert.Contains(t, output, "error: undo is not possible while selecting a date range")
	assert.Contains(t, output, "error: unknown command zzz")
	assert.Contains(t, output, "error: no preset 9")
	assert.Contains(t, output, "error: date range [2025-01-05..2025-01-01] contains no days")
	assert.Contains(t, output, "error: usage: r START END")
	assert.Equal(t, wizard.KindSelectingDateRange, h.sess.State().Kind())
}

func TestShellPicksPreset(t *testing.T) {
	h := run(t, "1\n", false)

	entering, ok := h.sess.State().(wizard.EnteringShifts)
	require.True(t, ok)
	today := dates.Today(time.UTC)
	assert.Equal(t, dates.ContainingMonth(today), entering.DateRange)
}

func TestShellPromptsOnlyWhenInteractive(t *testing.T) {
	quiet := run(t, "r 2025-01-01 2025-01-02\nq\n", false)
	assert.Empty(t, quiet.out.String())

	chatty := run(t, "r 2025-01-01 2025-01-02\nq\n", true)
	output := chatty.out.String()
	assert.Contains(t, output, "Select the days to fill in")
	assert.Contains(t, output, "Wednesday 2025-01-01 (2 left)")
	assert.Contains(t, output, "1) Early (06:00-14:00)")
	assert.Contains(t, output, "2) Off (all day)")
}

func TestTerminalReadLineWithoutTrailingNewline(t *testing.T) {
	term := NewTerminal(strings.NewReader("  yes"), &bytes.Buffer{}, false)

	line, err := term.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "yes", line)

	_, err = term.ReadLine()
	assert.Error(t, err)
}
