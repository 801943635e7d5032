package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
)

// Parse parses a single ICS payload.
func Parse(body []byte) (*ical.Calendar, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	return ical.ParseCalendar(bytes.NewReader(body))
}

// Decode converts the VEVENTs of cal back into materialized events. All-day
// anchors are resolved to midnight in loc. Events that cannot be read are
// logged and skipped.
func Decode(cal *ical.Calendar, loc *time.Location) []model.MaterializedEvent {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.MaterializedEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := decodeEvent(ve, loc)
		if err != nil {
			appLog.Error("ics vevent decode failed", err, "uid", ve.Id())
			continue
		}
		out = append(out, ev)
	}
	return out
}

func decodeEvent(ve *ical.VEvent, loc *time.Location) (model.MaterializedEvent, error) {
	var out model.MaterializedEvent

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(propColor); p != nil {
		out.ColorKey = p.Value
	}
	if p := ve.GetProperty(propTemplateID); p != nil {
		out.TemplateID = p.Value
	}
	if p := ve.GetProperty(propCalendarID); p != nil {
		out.CalendarID = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}

	// VALUE=DATE or no 'T' in the value -> all-day anchor.
	if !strings.Contains(dtStart.Value, "T") {
		day, err := time.ParseInLocation("20060102", dtStart.Value, loc)
		if err != nil {
			return out, err
		}
		out.AllDay = true
		out.Start = day
		out.End = day
		out.Zone = loc.String()
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start.In(loc)
	out.End = end.In(loc)
	out.Zone = loc.String()
	return out, nil
}
