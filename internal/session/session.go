// Package session owns the wizard state of one user. Shells (web,
// console) drive it; it is safe for concurrent use.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"shiftplan/internal/apperror"
	"shiftplan/internal/calendar"
	"shiftplan/internal/dates"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
	"shiftplan/internal/store"
	"shiftplan/internal/wizard"
)

// Options configure a Session.
type Options struct {
	// Location is the zone shifts are materialized in.
	Location *time.Location

	// PresetMonths is the number of month ranges Presets offers.
	PresetMonths int

	// ExportName names the calendar produced by Export.
	ExportName string
}

// Session holds the current wizard state together with the template
// feed and the importer.
type Session struct {
	store    store.Store
	importer *calendar.Importer
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	state     wizard.State
	importing bool
	templates []model.ShiftTemplate

	unsubscribe func()
}

// New starts a session in the initial state and subscribes it to st.
func New(st store.Store, im *calendar.Importer, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ExportName == "" {
		opts.ExportName = "Shifts"
	}
	s := &Session{
		store:    st,
		importer: im,
		opts:     opts,
		now:      time.Now,
		state:    wizard.Initial(),
	}
	s.unsubscribe = st.Subscribe(s.onTemplates)
	return s
}

func (s *Session) onTemplates(templates []model.ShiftTemplate) {
	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	appLog.Debug("session templates updated", "count", len(templates))
}

// Close detaches the session from the template feed.
func (s *Session) Close() {
	s.unsubscribe()
}

func (s *Session) State() wizard.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Location() *time.Location { return s.opts.Location }

// Dispatch applies a to the current state. While an import is running
// the state is frozen and every action is refused.
func (s *Session) Dispatch(a wizard.Action) (wizard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(a)
}

func (s *Session) dispatchLocked(a wizard.Action) (wizard.State, error) {
	if s.importing {
		return s.state, apperror.NewConflict("an import is in progress")
	}
	next, err := wizard.Apply(s.state, a)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// Enter assigns the template with templateID to the current day. An empty
// templateID skips the day.
func (s *Session) Enter(templateID string) (wizard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return s.dispatchLocked(wizard.Enter{})
	}
	t, ok := store.Find(s.templates, templateID)
	if !ok {
		return s.state, apperror.NewNotFound("unknown shift template " + templateID)
	}
	return s.dispatchLocked(wizard.Enter{Template: &t})
}

// Templates returns the latest template snapshot.
func (s *Session) Templates() []model.ShiftTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ShiftTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// SaveTemplate stores t, assigning a fresh ID when it has none.
func (s *Session) SaveTemplate(ctx context.Context, t model.ShiftTemplate) (model.ShiftTemplate, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = model.NewTemplateID()
	}
	if err := s.store.Upsert(ctx, t); err != nil {
		return model.ShiftTemplate{}, err
	}
	return t, nil
}

func (s *Session) RemoveTemplate(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// Presets returns the month ranges offered while selecting a date range,
// starting with the current month.
func (s *Session) Presets() ([]dates.Range, error) {
	today := dates.Today(s.opts.Location)
	return dates.UpcomingMonths(today, s.opts.PresetMonths)
}

// Calendars lists the calendars of the sink.
func (s *Session) Calendars(ctx context.Context) ([]model.CalendarInfo, error) {
	return s.importer.Sink.ListCalendars(ctx)
}

// Import writes the reviewed entries. The state lock is not held while
// the sink runs; a concurrent import is refused with a conflict error.
//
// After a complete or partial import the wizard starts over; the partial
// case still returns its error together with the counts. Any other error
// leaves the review list in place.
func (s *Session) Import(ctx context.Context) (calendar.ImportResult, wizard.State, error) {
	s.mu.Lock()
	if s.importing {
		s.mu.Unlock()
		return calendar.ImportResult{}, nil, apperror.NewConflict("an import is already running")
	}
	review, ok := s.state.(wizard.Reviewing)
	if !ok {
		st := s.state
		s.mu.Unlock()
		// Every other state refuses ImportCompleted; reuse its error.
		_, err := wizard.Apply(st, wizard.ImportCompleted{})
		return calendar.ImportResult{}, st, err
	}
	s.importing = true
	entries := review.Entered
	s.mu.Unlock()

	res, err := s.importer.Import(ctx, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.importing = false

	if err != nil && !apperror.Is(err, apperror.TypePartialImport) {
		appLog.Error("import failed", err, "entries", len(entries))
		return res, s.state, err
	}
	s.state, _ = wizard.Apply(s.state, wizard.ImportCompleted{})
	if err != nil {
		appLog.Warn("import partially failed", "imported", res.Imported, "failed", res.Failed)
	} else {
		appLog.Info("import completed", "imported", res.Imported)
	}
	return res, s.state, err
}

// Export renders the entries of the current state as an ICS document.
func (s *Session) Export() (string, error) {
	entries := wizard.Entries(s.State())
	if len(entries) == 0 {
		return "", apperror.NewValidation("there are no shifts to export")
	}
	return calendar.Export(s.opts.ExportName, entries, s.opts.Location, s.now()), nil
}
