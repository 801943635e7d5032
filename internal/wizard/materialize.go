package wizard

import (
	"time"

	"shiftplan/internal/model"
)

// Materialize resolves ev to absolute instants in loc. It returns false
// for a skipped day.
//
// A timed shift ends on the same day only if its start is strictly before
// its end; otherwise it ends on the following day, so start == end yields
// a 24 hour event.
func Materialize(ev model.ShiftEvent, loc *time.Location) (model.MaterializedEvent, bool) {
	if ev.Template == nil {
		return model.MaterializedEvent{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	tmpl := ev.Template

	out := model.MaterializedEvent{
		TemplateID:  tmpl.ID,
		Summary:     tmpl.Summary,
		Description: tmpl.Description,
		CalendarID:  tmpl.CalendarID,
		ColorKey:    tmpl.ColorKey,
		Zone:        loc.String(),
	}

	if tmpl.Times == nil {
		anchor := ev.Date.StartIn(loc)
		out.AllDay = true
		out.Start = anchor
		out.End = anchor
		return out, true
	}

	endDay := ev.Date
	if !tmpl.Times.Start.Before(tmpl.Times.End) {
		endDay = endDay.AddDays(1)
	}
	out.Start = ev.Date.At(tmpl.Times.Start, loc)
	out.End = endDay.At(tmpl.Times.End, loc)
	return out, true
}

// MaterializeAll materializes events in order, dropping skipped days.
func MaterializeAll(events []model.ShiftEvent, loc *time.Location) []model.MaterializedEvent {
	out := make([]model.MaterializedEvent, 0, len(events))
	for _, ev := range events {
		if m, ok := Materialize(ev, loc); ok {
			out = append(out, m)
		}
	}
	return out
}
