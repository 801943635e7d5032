package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"

	"shiftplan/internal/apperror"
	"shiftplan/internal/config"
	"shiftplan/internal/ics"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
)

// DirSink keeps every configured calendar as one ICS file, <dir>/<id>.ics,
// so the result can be subscribed to or imported by any calendar client.
type DirSink struct {
	dir       string
	calendars []model.CalendarInfo
	gate      Gate

	// now stamps DTSTAMP / CREATED; replaced in tests.
	now func() time.Time

	mu sync.Mutex
}

// NewDirSink builds a sink over dir with the given calendars. The primary
// calendars are listed first; otherwise configuration order is kept.
func NewDirSink(dir string, entries []config.CalendarEntry, gate Gate) *DirSink {
	calendars := make([]model.CalendarInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		calendars = append(calendars, model.CalendarInfo{
			ID:              e.ID,
			Name:            name,
			IsPrimary:       e.Primary,
			AvailableColors: slices.Clone(e.Colors),
		})
	}
	slices.SortStableFunc(calendars, func(a, b model.CalendarInfo) int {
		switch {
		case a.IsPrimary == b.IsPrimary:
			return 0
		case a.IsPrimary:
			return -1
		default:
			return 1
		}
	})
	return &DirSink{dir: dir, calendars: calendars, gate: gate, now: time.Now}
}

func (s *DirSink) ListCalendars(ctx context.Context) ([]model.CalendarInfo, error) {
	if !s.gate.CheckAuthorization(ctx) {
		return nil, apperror.NewAuthorization("reading calendars requires authorization")
	}
	out := make([]model.CalendarInfo, len(s.calendars))
	for i, c := range s.calendars {
		c.AvailableColors = slices.Clone(c.AvailableColors)
		out[i] = c
	}
	return out, nil
}

// ImportEvents inserts events one by one. When ctx is cancelled the loop
// stops; events written so far stay written and the partial result is
// returned with the context error.
func (s *DirSink) ImportEvents(ctx context.Context, events []model.MaterializedEvent) (ImportResult, error) {
	var res ImportResult
	if !s.gate.CheckAuthorization(ctx) {
		return res, apperror.NewAuthorization("writing calendars requires authorization")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			appLog.Warn("calendar import cancelled", "imported", res.Imported, "failed", res.Failed, "remaining", len(events)-res.Imported-res.Failed)
			return res, err
		}
		if err := s.insert(ev); err != nil {
			appLog.Error("calendar insert failed", err, "calendar", ev.CalendarID, "summary", ev.Summary, "start", ev.Start)
			res.Failed++
			res.FailedEvents = append(res.FailedEvents, ev)
			continue
		}
		res.Imported++
	}

	appLog.Info("calendar import finished", "dir", s.dir, "imported", res.Imported, "failed", res.Failed)
	return res, nil
}

// Events reads back the events stored in one calendar.
func (s *DirSink) Events(ctx context.Context, calendarID string, loc *time.Location) ([]model.MaterializedEvent, error) {
	if !s.gate.CheckAuthorization(ctx) {
		return nil, apperror.NewAuthorization("reading calendars requires authorization")
	}
	info, ok := s.lookup(calendarID)
	if !ok {
		return nil, apperror.NewNotFound("unknown calendar " + calendarID)
	}

	s.mu.Lock()
	cal, err := s.load(info)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ics.Decode(cal, loc), nil
}

func (s *DirSink) insert(ev model.MaterializedEvent) error {
	info, ok := s.lookup(ev.CalendarID)
	if !ok {
		return fmt.Errorf("unknown calendar %q", ev.CalendarID)
	}

	cal, err := s.load(info)
	if err != nil {
		return err
	}
	ics.AddEvent(cal, ev, ics.NewUID(), s.now())

	return config.WriteFileAtomic(s.path(info.ID), []byte(cal.Serialize()))
}

// load parses the calendar file, or starts an empty calendar when the
// file does not exist yet.
func (s *DirSink) load(info model.CalendarInfo) (*ical.Calendar, error) {
	body, err := os.ReadFile(s.path(info.ID))
	if errors.Is(err, fs.ErrNotExist) {
		return ics.NewCalendar(info.Name), nil
	}
	if err != nil {
		return nil, err
	}
	cal, err := ics.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path(info.ID), err)
	}
	return cal, nil
}

func (s *DirSink) lookup(id string) (model.CalendarInfo, bool) {
	i := slices.IndexFunc(s.calendars, func(c model.CalendarInfo) bool { return c.ID == id })
	if i < 0 {
		return model.CalendarInfo{}, false
	}
	return s.calendars[i], true
}

func (s *DirSink) path(id string) string {
	return filepath.Join(s.dir, id+".ics")
}
