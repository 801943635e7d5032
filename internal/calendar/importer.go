package calendar

import (
	"context"
	"fmt"
	"time"

	"shiftplan/internal/apperror"
	"shiftplan/internal/ics"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
	"shiftplan/internal/wizard"
)

// Importer writes a reviewed entry list into the Sink.
type Importer struct {
	Sink     Sink
	Gate     Gate
	Location *time.Location

	// SingleCalendar sends every event to the primary calendar (or the
	// first listed one) instead of each template's own calendar.
	SingleCalendar bool
}

// Import materializes entries and hands them to the sink.
//
// Authorization is checked first and requested at most once; a denial
// returns an authorization error and writes nothing. In single-calendar
// mode a missing target returns a no-target error. If any event fails the
// counts are returned together with a partial-import error.
func (im *Importer) Import(ctx context.Context, entries []model.ShiftEvent) (ImportResult, error) {
	if err := im.authorize(ctx); err != nil {
		return ImportResult{}, err
	}

	events := wizard.MaterializeAll(entries, im.Location)

	if im.SingleCalendar {
		target, err := im.target(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		for i := range events {
			events[i].CalendarID = target.ID
		}
	}

	appLog.Info("importing shifts", "entries", len(entries), "events", len(events), "single_calendar", im.SingleCalendar)

	res, err := im.Sink.ImportEvents(ctx, events)
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, apperror.NewPartialImport(res.Imported, res.Failed)
	}
	return res, nil
}

func (im *Importer) authorize(ctx context.Context) error {
	if im.Gate.CheckAuthorization(ctx) {
		return nil
	}
	granted, err := im.Gate.RequestAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("requesting calendar authorization: %w", err)
	}
	if !granted {
		appLog.Warn("calendar authorization denied")
		return apperror.NewAuthorization("calendar access was not granted")
	}
	return nil
}

// target resolves the calendar used in single-calendar mode.
func (im *Importer) target(ctx context.Context) (model.CalendarInfo, error) {
	calendars, err := im.Sink.ListCalendars(ctx)
	if err != nil {
		return model.CalendarInfo{}, err
	}
	for _, c := range calendars {
		if c.IsPrimary {
			return c, nil
		}
	}
	if len(calendars) > 0 {
		return calendars[0], nil
	}
	return model.CalendarInfo{}, apperror.NewNoTarget()
}

// Export renders entries as a standalone VCALENDAR without touching the
// sink.
func Export(name string, entries []model.ShiftEvent, loc *time.Location, now time.Time) string {
	return ics.Encode(name, wizard.MaterializeAll(entries, loc), now)
}
