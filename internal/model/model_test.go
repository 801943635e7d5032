package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"shiftplan/internal/apperror"
	"shiftplan/internal/dates"
)

func TestValidate(t *testing.T) {
	valid := ShiftTemplate{ID: "1", Summary: "Morning shift", CalendarID: "work"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		tmpl ShiftTemplate
	}{
		{"empty summary", ShiftTemplate{ID: "1", Summary: "", CalendarID: "work"}},
		{"blank summary", ShiftTemplate{ID: "1", Summary: "   ", CalendarID: "work"}},
		{"missing calendar", ShiftTemplate{ID: "1", Summary: "Night"}},
		{"missing id", ShiftTemplate{Summary: "Night", CalendarID: "work"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tmpl.Validate()
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.TypeValidation))
		})
	}
}

func TestNewShiftTimes(t *testing.T) {
	times, err := NewShiftTimes("21:30", "06:00")
	require.NoError(t, err)
	assert.Equal(t, &ShiftTimes{
		Start: dates.TimeOfDay{Hour: 21, Minute: 30},
		End:   dates.TimeOfDay{Hour: 6},
	}, times)

	allDay, err := NewShiftTimes("", " ")
	require.NoError(t, err)
	assert.Nil(t, allDay)

	for _, pair := range [][2]string{{"08:00", ""}, {"", "17:00"}, {"8", "17:00"}, {"08:00", "25:00"}} {
		_, err := NewShiftTimes(pair[0], pair[1])
		assert.True(t, apperror.Is(err, apperror.TypeValidation), "%v", pair)
	}
}

func TestDecodeShiftTimesRequiresBothSides(t *testing.T) {
	var tmpl ShiftTemplate
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n","times":{"start":"22:00","end":"06:00"}}`), &tmpl))
	assert.Equal(t, &ShiftTimes{Start: dates.TimeOfDay{Hour: 22}, End: dates.TimeOfDay{Hour: 6}}, tmpl.Times)

	tmpl = ShiftTemplate{}
	require.NoError(t, yaml.Unmarshal([]byte("id: n\ntimes:\n  start: \"22:00\"\n  end: \"06:00\"\n"), &tmpl))
	assert.Equal(t, dates.TimeOfDay{Hour: 22}, tmpl.Times.Start)

	tmpl = ShiftTemplate{}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"off","times":null}`), &tmpl))
	assert.Nil(t, tmpl.Times)

	for _, body := range []string{
		`{"times":{"start":"09:00"}}`,
		`{"times":{"end":"17:00"}}`,
		`{"times":{}}`,
		`{"times":{"start":"","end":""}}`,
		`{"times":{"start":null,"end":"17:00"}}`,
	} {
		var got ShiftTemplate
		err := json.Unmarshal([]byte(body), &got)
		require.Error(t, err, body)
		assert.True(t, apperror.Is(err, apperror.TypeValidation), body)
	}

	for _, doc := range []string{
		"times:\n  start: \"09:00\"\n",
		"times: {}\n",
	} {
		var got ShiftTemplate
		err := yaml.Unmarshal([]byte(doc), &got)
		require.Error(t, err, doc)
		assert.True(t, apperror.Is(err, apperror.TypeValidation), doc)
	}
}

func TestSameEntityIgnoresFields(t *testing.T) {
	a := ShiftTemplate{ID: "x", Summary: "Early"}
	b := ShiftTemplate{ID: "x", Summary: "Late", Description: "changed"}
	c := ShiftTemplate{ID: "y", Summary: "Early"}

	assert.True(t, a.SameEntity(b))
	assert.False(t, a.SameEntity(c))
}

func TestNewTemplateIDIsUnique(t *testing.T) {
	a, b := NewTemplateID(), NewTemplateID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
