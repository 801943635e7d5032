package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftplan/internal/apperror"
	"shiftplan/internal/calendar"
	"shiftplan/internal/dates"
	"shiftplan/internal/model"
	"shiftplan/internal/store"
	"shiftplan/internal/wizard"
)

type fakeGate struct {
	granted  bool
	answer   bool
	requests int
}

func (g *fakeGate) CheckAuthorization(context.Context) bool { return g.granted }

func (g *fakeGate) RequestAuthorization(context.Context) (bool, error) {
	g.requests++
	g.granted = g.answer
	return g.answer, nil
}

type fakeSink struct {
	fail    map[string]bool
	got     []model.MaterializedEvent
	block   chan struct{}
	entered chan struct{}
}

func (s *fakeSink) ListCalendars(context.Context) ([]model.CalendarInfo, error) {
	return []model.CalendarInfo{{ID: "work", Name: "Work", IsPrimary: true}}, nil
}

func (s *fakeSink) ImportEvents(ctx context.Context, events []model.MaterializedEvent) (calendar.ImportResult, error) {
	if s.block != nil {
		close(s.entered)
		select {
		case <-s.block:
		case <-ctx.Done():
			return calendar.ImportResult{}, ctx.Err()
		}
	}
	var res calendar.ImportResult
	for _, ev := range events {
		if s.fail[ev.Summary] {
			res.Failed++
			res.FailedEvents = append(res.FailedEvents, ev)
			continue
		}
		s.got = append(s.got, ev)
		res.Imported++
	}
	return res, nil
}

type fixture struct {
	session *Session
	store   *store.FileStore
	sink    *fakeSink
	gate    *fakeGate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenFileStore(filepath.Join(t.TempDir(), "templates.yaml"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Upsert(ctx, model.ShiftTemplate{
		ID: "early", Summary: "Early", CalendarID: "work",
		Times: &model.ShiftTimes{Start: dates.TimeOfDay{Hour: 6}, End: dates.TimeOfDay{Hour: 14}},
	}))
	require.NoError(t, st.Upsert(ctx, model.ShiftTemplate{ID: "off", Summary: "Off", CalendarID: "work"}))

	sink := &fakeSink{}
	gate := &fakeGate{granted: true}
	s := New(st, &calendar.Importer{Sink: sink, Gate: gate, Location: time.UTC}, Options{Location: time.UTC, PresetMonths: 3})
	t.Cleanup(s.Close)
	return &fixture{session: s, store: st, sink: sink, gate: gate}
}

// review walks Jan 1-3 with early, skip, off.
func (f *fixture) review(t *testing.T) wizard.State {
	t.Helper()
	_, err := f.session.Dispatch(wizard.SelectRange{Range: dates.NewRange(dates.Of(2025, 1, 1), dates.Of(2025, 1, 3))})
	require.NoError(t, err)
	for _, id := range []string{"early", "", "off"} {
		_, err := f.session.Enter(id)
		require.NoError(t, err)
	}
	st := f.session.State()
	require.Equal(t, wizard.KindReviewing, st.Kind())
	return st
}

func TestSessionImportResetsWizard(t *testing.T) {
	f := newFixture(t)
	f.review(t)

	res, st, err := f.session.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, wizard.KindSelectingDateRange, st.Kind())
	assert.Equal(t, wizard.KindSelectingDateRange, f.session.State().Kind())

	require.Len(t, f.sink.got, 2)
	assert.Equal(t, time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC), f.sink.got[0].Start)
	assert.True(t, f.sink.got[1].AllDay)
}

func TestSessionImportDeniedKeepsReview(t *testing.T) {
	f := newFixture(t)
	f.gate.granted = false
	f.gate.answer = false
	before := f.review(t)

	for i := 0; i < 2; i++ {
		_, st, err := f.session.Import(context.Background())
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.TypeAuthorization))
		assert.Equal(t, before, st)
	}
	assert.Equal(t, 2, f.gate.requests)
	assert.Equal(t, before, f.session.State())
	assert.Empty(t, f.sink.got)
}

func TestSessionPartialImportStillResets(t *testing.T) {
	f := newFixture(t)
	f.sink.fail = map[string]bool{"Off": true}
	f.review(t)

	res, st, err := f.session.Import(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TypePartialImport))
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, wizard.KindSelectingDateRange, st.Kind())
}

func TestSessionImportOutsideReview(t *testing.T) {
	f := newFixture(t)

	_, st, err := f.session.Import(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TypeInvalidTransition))
	assert.Equal(t, wizard.KindSelectingDateRange, st.Kind())
}

func TestSessionRefusesWorkDuringImport(t *testing.T) {
	f := newFixture(t)
	f.sink.block = make(chan struct{})
	f.sink.entered = make(chan struct{})
	f.review(t)

	done := make(chan error, 1)
	go func() {
		_, _, err := f.session.Import(context.Background())
		done <- err
	}()
	<-f.sink.entered

	_, _, err := f.session.Import(context.Background())
	assert.True(t, apperror.Is(err, apperror.TypeConflict))

	_, err = f.session.Dispatch(wizard.DiscardAll{})
	assert.True(t, apperror.Is(err, apperror.TypeConflict))
	assert.Equal(t, wizard.KindReviewing, f.session.State().Kind())

	close(f.sink.block)
	require.NoError(t, <-done)
	assert.Equal(t, wizard.KindSelectingDateRange, f.session.State().Kind())
}

func TestSessionEnterUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Dispatch(wizard.SelectRange{Range: dates.NewRange(dates.Of(2025, 1, 1), dates.Of(2025, 1, 2))})
	require.NoError(t, err)

	st, err := f.session.Enter("ghost")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TypeNotFound))

	entering, ok := st.(wizard.EnteringShifts)
	require.True(t, ok)
	assert.Equal(t, dates.Of(2025, 1, 1), entering.CurrentDate())
}

func TestSessionFollowsTemplateFeed(t *testing.T) {
	f := newFixture(t)
	assert.Len(t, f.session.Templates(), 2)

	saved, err := f.session.SaveTemplate(context.Background(), model.ShiftTemplate{Summary: "Night", CalendarID: "work"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	templates := f.session.Templates()
	require.Len(t, templates, 3)
	assert.Equal(t, saved.ID, templates[2].ID)

	require.NoError(t, f.session.RemoveTemplate(context.Background(), "off"))
	assert.Len(t, f.session.Templates(), 2)

	_, err = f.session.Dispatch(wizard.SelectRange{Range: dates.NewRange(dates.Of(2025, 1, 1), dates.Of(2025, 1, 1))})
	require.NoError(t, err)
	_, err = f.session.Enter("off")
	assert.True(t, apperror.Is(err, apperror.TypeNotFound))
	_, err = f.session.Enter(saved.ID)
	require.NoError(t, err)
}

func TestSessionSaveTemplateValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.SaveTemplate(context.Background(), model.ShiftTemplate{Summary: "No calendar"})
	assert.True(t, apperror.Is(err, apperror.TypeValidation))
}

func TestSessionExport(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Export()
	assert.True(t, apperror.Is(err, apperror.TypeValidation))

	f.review(t)
	body, err := f.session.Export()
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "X-WR-CALNAME:Shifts")
	assert.Equal(t, wizard.KindReviewing, f.session.State().Kind())
}

func TestSessionPresets(t *testing.T) {
	f := newFixture(t)

	presets, err := f.session.Presets()
	require.NoError(t, err)
	require.Len(t, presets, 3)
	assert.True(t, presets[0].Contains(dates.Today(time.UTC)))
	assert.Equal(t, presets[0].End.AddDays(1), presets[1].Start)
}

func TestSessionCalendars(t *testing.T) {
	f := newFixture(t)
	cals, err := f.session.Calendars(context.Background())
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, "work", cals[0].ID)
}
