// Package wizard implements the shift entering state machine as a reducer:
// Apply(state, action) returns the next state without mutating the old one.
// The shell holding the state only stores and renders it.
package wizard

import (
	"slices"

	"shiftplan/internal/dates"
	"shiftplan/internal/model"
)

// Kinds of state, used by shells to render and serialize.
const (
	KindSelectingDateRange = "selecting_date_range"
	KindEnteringShifts     = "entering_shifts"
	KindEditingShift       = "editing_shift"
	KindReviewing          = "reviewing"
)

// State is the sealed set of wizard states. Only the four types in this
// package implement it.
type State interface {
	Kind() string
	sealed()
}

// SelectingDateRange is the initial state; it carries no payload.
type SelectingDateRange struct{}

// EnteringShifts walks DateRange one day at a time. DateRange is never
// empty in this state.
type EnteringShifts struct {
	DateRange dates.Range
	Entered   []model.ShiftEvent
}

// EditingShift corrects one entry taken out of the review list. Entered
// holds the remaining entries, without ToEdit.
type EditingShift struct {
	ToEdit  model.ShiftEvent
	Entered []model.ShiftEvent
}

// Reviewing presents the complete list before import.
type Reviewing struct {
	Entered []model.ShiftEvent
}

func (SelectingDateRange) Kind() string { return KindSelectingDateRange }
func (EnteringShifts) Kind() string     { return KindEnteringShifts }
func (EditingShift) Kind() string       { return KindEditingShift }
func (Reviewing) Kind() string          { return KindReviewing }

func (SelectingDateRange) sealed() {}
func (EnteringShifts) sealed()     {}
func (EditingShift) sealed()       {}
func (Reviewing) sealed()          {}

// CurrentDate is the day the next Enter applies to.
func (s EnteringShifts) CurrentDate() dates.Day { return s.DateRange.Start }

// CurrentDate is the day being corrected; it never changes while editing.
func (s EditingShift) CurrentDate() dates.Day { return s.ToEdit.Date }

// Initial returns the state a new session starts in.
func Initial() State { return SelectingDateRange{} }

// Entries returns the shifts entered so far in s, sorted by date. While
// editing, the entry under edit is included at its date.
func Entries(s State) []model.ShiftEvent {
	switch st := s.(type) {
	case SelectingDateRange:
		return nil
	case EnteringShifts:
		return slices.Clone(st.Entered)
	case EditingShift:
		return withEvent(st.Entered, st.ToEdit)
	case Reviewing:
		return slices.Clone(st.Entered)
	default:
		panic("wizard: unknown state")
	}
}
