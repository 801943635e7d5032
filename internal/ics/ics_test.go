package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftplan/internal/model"
)

var stamp = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestEncodeStructure(t *testing.T) {
	events := []model.MaterializedEvent{
		{
			TemplateID: "night",
			Summary:    "Night shift",
			CalendarID: "work",
			ColorKey:   "5",
			Start:      time.Date(2025, 1, 15, 22, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 1, 16, 6, 0, 0, 0, time.UTC),
		},
		{
			TemplateID: "off",
			Summary:    "Day off",
			CalendarID: "work",
			AllDay:     true,
			Start:      time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		},
	}

	body := Encode("Shifts", events, stamp)

	for _, field := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + ProductID,
		"METHOD:PUBLISH",
		"X-WR-CALNAME:Shifts",
		"SUMMARY:Night shift",
		"DTSTART:20250115T220000Z",
		"DTEND:20250116T060000Z",
		"DTSTART;VALUE=DATE:20250120",
		"DTEND;VALUE=DATE:20250121",
		"COLOR:5",
		"X-SHIFTPLAN-TEMPLATE:night",
		"END:VCALENDAR",
	} {
		assert.Contains(t, body, field)
	}
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
}

func TestDecodeRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	in := []model.MaterializedEvent{
		{
			TemplateID:  "early",
			Summary:     "Morning shift",
			Description: "Ward 3",
			CalendarID:  "work",
			Start:       time.Date(2025, 3, 10, 5, 30, 0, 0, loc),
			End:         time.Date(2025, 3, 10, 15, 0, 0, 0, loc),
		},
		{
			TemplateID: "off",
			Summary:    "Day off",
			CalendarID: "work",
			AllDay:     true,
			Start:      time.Date(2025, 3, 11, 0, 0, 0, 0, loc),
			End:        time.Date(2025, 3, 11, 0, 0, 0, 0, loc),
		},
	}

	cal, err := Parse([]byte(Encode("Work", in, stamp)))
	require.NoError(t, err)

	out := Decode(cal, loc)
	require.Len(t, out, 2)

	assert.Equal(t, "Morning shift", out[0].Summary)
	assert.Equal(t, "Ward 3", out[0].Description)
	assert.Equal(t, "early", out[0].TemplateID)
	assert.Equal(t, "work", out[0].CalendarID)
	assert.True(t, in[0].Start.Equal(out[0].Start))
	assert.True(t, in[0].End.Equal(out[0].End))
	assert.False(t, out[0].AllDay)

	assert.True(t, out[1].AllDay)
	assert.True(t, in[1].Start.Equal(out[1].Start))
	assert.Equal(t, "Europe/Berlin", out[1].Zone)
}

func TestParseEmptyBody(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}
