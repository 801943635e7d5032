package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"shiftplan/internal/apperror"
	"shiftplan/internal/dates"
)

// ShiftTimes is the daily span of a timed shift. Start after (or equal to)
// End means the shift runs past midnight.
type ShiftTimes struct {
	Start dates.TimeOfDay `yaml:"start" json:"start"`
	End   dates.TimeOfDay `yaml:"end" json:"end"`
}

// NewShiftTimes builds ShiftTimes from textual input. Both sides must be
// given or both left empty (all-day); a half-specified span is rejected.
func NewShiftTimes(start, end string) (*ShiftTimes, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errPartialTimes()
	}
	s, err := dates.ParseTimeOfDay(start)
	if err != nil {
		return nil, apperror.NewValidation("invalid start time " + start)
	}
	e, err := dates.ParseTimeOfDay(end)
	if err != nil {
		return nil, apperror.NewValidation("invalid end time " + end)
	}
	return &ShiftTimes{Start: s, End: e}, nil
}

// shiftTimesInput is the decoded form of ShiftTimes; a nil side was omitted.
type shiftTimesInput struct {
	Start *string `yaml:"start" json:"start"`
	End   *string `yaml:"end" json:"end"`
}

func (in shiftTimesInput) build() (ShiftTimes, error) {
	if in.Start == nil || in.End == nil {
		return ShiftTimes{}, errPartialTimes()
	}
	t, err := NewShiftTimes(*in.Start, *in.End)
	if err != nil {
		return ShiftTimes{}, err
	}
	// Both sides blank: an all-day template omits times instead.
	if t == nil {
		return ShiftTimes{}, errPartialTimes()
	}
	return *t, nil
}

func errPartialTimes() error {
	return apperror.NewValidation("a timed shift needs both a start and an end time")
}

func (t *ShiftTimes) UnmarshalJSON(b []byte) error {
	var in shiftTimesInput
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	parsed, err := in.build()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *ShiftTimes) UnmarshalYAML(value *yaml.Node) error {
	var in shiftTimesInput
	if err := value.Decode(&in); err != nil {
		return err
	}
	parsed, err := in.build()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ShiftTemplate is a named, reusable shift definition. Two templates are
// the same entity iff their IDs match.
type ShiftTemplate struct {
	ID          string `yaml:"id" json:"id"`
	Summary     string `yaml:"summary" json:"summary"`
	Description string `yaml:"description,omitempty" json:"description"`

	// Times is nil for an all-day event.
	Times *ShiftTimes `yaml:"times,omitempty" json:"times,omitempty"`

	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// ColorKey selects one of the target calendar's event colors.
	ColorKey string `yaml:"color_key,omitempty" json:"color_key,omitempty"`
}

// NewTemplateID returns a fresh, stable template identifier.
func NewTemplateID() string {
	return uuid.NewString()
}

func (t ShiftTemplate) AllDay() bool { return t.Times == nil }

func (t ShiftTemplate) SameEntity(o ShiftTemplate) bool { return t.ID == o.ID }

// Validate checks a template before it may reach storage.
func (t ShiftTemplate) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return apperror.NewValidation("template id must not be empty")
	}
	if strings.TrimSpace(t.Summary) == "" {
		return apperror.NewValidation("summary must not be empty")
	}
	if strings.TrimSpace(t.CalendarID) == "" {
		return apperror.NewValidation("a calendar must be selected")
	}
	return nil
}

// ShiftEvent assigns a template to one day. A nil Template marks a day
// that was explicitly skipped; it keeps its slot so it can be edited.
type ShiftEvent struct {
	Template *ShiftTemplate `json:"template"`
	Date     dates.Day      `json:"date"`
}

func (e ShiftEvent) Skipped() bool { return e.Template == nil }

// MaterializedEvent is a shift resolved to absolute instants, ready for a
// calendar sink. For all-day events Start == End == midnight of the day in
// Zone; the sink is responsible for all-day semantics from that anchor.
type MaterializedEvent struct {
	TemplateID  string
	Summary     string
	Description string
	CalendarID  string
	ColorKey    string

	AllDay bool
	Start  time.Time
	End    time.Time

	// Zone is the IANA name of the location Start/End were resolved in.
	Zone string
}

// EventColor is one event color offered by a calendar.
type EventColor struct {
	Key   string `yaml:"key" json:"key"`
	Color string `yaml:"color" json:"color"`
}

// CalendarInfo describes a writable calendar of the sink.
type CalendarInfo struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	IsPrimary       bool         `json:"is_primary"`
	AvailableColors []EventColor `json:"available_colors"`
}
