package wizard

import (
	"fmt"
	"slices"

	"shiftplan/internal/apperror"
	"shiftplan/internal/dates"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
)

// Action is one user decision fed to Apply.
type Action interface {
	Name() string
	action()
}

// SelectRange starts entering shifts for a non-empty range.
type SelectRange struct{ Range dates.Range }

// Enter assigns Template to the current day; a nil Template skips it.
type Enter struct{ Template *model.ShiftTemplate }

// Undo steps back: to the previous day while entering, or back to the
// review list (restoring the original entry) while editing.
type Undo struct{}

// EditShift takes the review entry at Index out for correction.
type EditShift struct{ Index int }

// DiscardAll drops the whole session.
type DiscardAll struct{}

// ImportCompleted resets the session after an import attempt, whether or
// not every event was written.
type ImportCompleted struct{}

func (SelectRange) Name() string     { return "select range" }
func (Enter) Name() string           { return "enter" }
func (Undo) Name() string            { return "undo" }
func (EditShift) Name() string       { return "edit" }
func (DiscardAll) Name() string      { return "discard" }
func (ImportCompleted) Name() string { return "import" }

func (SelectRange) action()     {}
func (Enter) action()           {}
func (Undo) action()            {}
func (EditShift) action()       {}
func (DiscardAll) action()      {}
func (ImportCompleted) action() {}

// Apply returns the state that follows s after a. Actions that s does not
// accept return s unchanged together with an invalid_transition error.
func Apply(s State, a Action) (State, error) {
	var (
		next State
		err  error
	)
	switch st := s.(type) {
	case SelectingDateRange:
		next, err = applySelecting(st, a)
	case EnteringShifts:
		next, err = applyEntering(st, a)
	case EditingShift:
		next, err = applyEditing(st, a)
	case Reviewing:
		next, err = applyReviewing(st, a)
	default:
		panic(fmt.Sprintf("wizard: unknown state %T", s))
	}
	if err != nil {
		return s, err
	}
	appLog.Debug("wizard transition", "action", a.Name(), "from", s.Kind(), "to", next.Kind())
	return next, nil
}

func applySelecting(s SelectingDateRange, a Action) (State, error) {
	switch act := a.(type) {
	case SelectRange:
		if act.Range.IsEmpty() {
			return nil, apperror.NewValidation(fmt.Sprintf("date range %s contains no days", act.Range))
		}
		return EnteringShifts{DateRange: act.Range, Entered: []model.ShiftEvent{}}, nil
	default:
		return nil, invalid(a, s)
	}
}

func applyEntering(s EnteringShifts, a Action) (State, error) {
	switch act := a.(type) {
	case Enter:
		entered := withEvent(s.Entered, model.ShiftEvent{Template: act.Template, Date: s.CurrentDate()})
		remaining := s.DateRange.LaterStart()
		if remaining.IsEmpty() {
			return Reviewing{Entered: entered}, nil
		}
		return EnteringShifts{DateRange: remaining, Entered: entered}, nil

	case Undo:
		if len(s.Entered) == 0 {
			return SelectingDateRange{}, nil
		}
		return EnteringShifts{
			DateRange: s.DateRange.EarlierStart(),
			Entered:   slices.Clone(s.Entered[:len(s.Entered)-1]),
		}, nil

	case DiscardAll:
		return SelectingDateRange{}, nil

	default:
		return nil, invalid(a, s)
	}
}

func applyEditing(s EditingShift, a Action) (State, error) {
	switch act := a.(type) {
	case Enter:
		edited := model.ShiftEvent{Template: act.Template, Date: s.CurrentDate()}
		return Reviewing{Entered: withEvent(s.Entered, edited)}, nil

	case Undo:
		return Reviewing{Entered: withEvent(s.Entered, s.ToEdit)}, nil

	case DiscardAll:
		return SelectingDateRange{}, nil

	default:
		return nil, invalid(a, s)
	}
}

func applyReviewing(s Reviewing, a Action) (State, error) {
	switch act := a.(type) {
	case EditShift:
		if act.Index < 0 || act.Index >= len(s.Entered) {
			return nil, apperror.NewValidation(fmt.Sprintf("no entry at position %d", act.Index))
		}
		rest := make([]model.ShiftEvent, 0, len(s.Entered)-1)
		rest = append(rest, s.Entered[:act.Index]...)
		rest = append(rest, s.Entered[act.Index+1:]...)
		return EditingShift{ToEdit: s.Entered[act.Index], Entered: rest}, nil

	case DiscardAll, ImportCompleted:
		return SelectingDateRange{}, nil

	default:
		return nil, invalid(a, s)
	}
}

// withEvent returns a new slice holding entries plus ev, stably sorted by
// date so same-day entries keep their insertion order.
func withEvent(entries []model.ShiftEvent, ev model.ShiftEvent) []model.ShiftEvent {
	out := make([]model.ShiftEvent, 0, len(entries)+1)
	out = append(out, entries...)
	out = append(out, ev)
	slices.SortStableFunc(out, func(a, b model.ShiftEvent) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

func invalid(a Action, s State) error {
	return apperror.NewInvalidTransition(a.Name(), describe(s))
}

func describe(s State) string {
	switch s.(type) {
	case SelectingDateRange:
		return "selecting a date range"
	case EnteringShifts:
		return "entering shifts"
	case EditingShift:
		return "editing a shift"
	case Reviewing:
		return "reviewing"
	default:
		return s.Kind()
	}
}
