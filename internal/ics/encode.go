package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"shiftplan/internal/model"
)

const (
	ProductID = "-//shiftplan//Shift Importer//EN"

	// Non-standard properties carrying where an event came from.
	propTemplateID = ical.ComponentProperty("X-SHIFTPLAN-TEMPLATE")
	propCalendarID = ical.ComponentProperty("X-SHIFTPLAN-CALENDAR")
	propColor      = ical.ComponentProperty("COLOR")
)

// NewCalendar returns an empty VCALENDAR named name.
func NewCalendar(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	return cal
}

// NewUID returns a globally unique VEVENT UID.
func NewUID() string {
	return uuid.NewString() + "@shiftplan"
}

// AddEvent appends ev to cal as a VEVENT with the given UID.
//
// All-day events are written as DATE values spanning the anchor day
// ([day, day+1)); timed events are written as UTC instants.
func AddEvent(cal *ical.Calendar, ev model.MaterializedEvent, uid string, now time.Time) *ical.VEvent {
	ve := cal.AddEvent(uid)
	ve.SetDtStampTime(now.UTC())
	ve.SetCreatedTime(now.UTC())
	ve.SetSummary(ev.Summary)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}

	if ev.AllDay {
		day := ev.Start
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
	}

	if ev.ColorKey != "" {
		ve.SetProperty(propColor, ev.ColorKey)
	}
	if ev.TemplateID != "" {
		ve.SetProperty(propTemplateID, ev.TemplateID)
	}
	if ev.CalendarID != "" {
		ve.SetProperty(propCalendarID, ev.CalendarID)
	}
	return ve
}

// Encode renders events as one standalone VCALENDAR document, e.g. for
// exporting a review list without writing to any calendar.
func Encode(name string, events []model.MaterializedEvent, now time.Time) string {
	cal := NewCalendar(name)
	for _, ev := range events {
		AddEvent(cal, ev, NewUID(), now)
	}
	return cal.Serialize()
}
