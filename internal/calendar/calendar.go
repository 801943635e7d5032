// Package calendar writes materialized shifts into calendars.
//
// A Sink is the device calendar store; a Gate stands for the user's
// permission to touch it. The Importer ties both to the wizard's review
// list.
package calendar

import (
	"context"

	"shiftplan/internal/model"
)

// Sink is a writable calendar store.
type Sink interface {
	// ListCalendars returns the calendars events may be written to. It
	// requires read authorization.
	ListCalendars(ctx context.Context) ([]model.CalendarInfo, error)

	// ImportEvents inserts each event independently. A failed insert is
	// counted and does not stop the remaining ones. It requires write
	// authorization.
	ImportEvents(ctx context.Context, events []model.MaterializedEvent) (ImportResult, error)
}

// Gate guards access to the calendar store.
type Gate interface {
	CheckAuthorization(ctx context.Context) bool

	// RequestAuthorization asks for access and reports whether it was
	// granted. It may block on the user.
	RequestAuthorization(ctx context.Context) (bool, error)
}

// ImportResult counts the outcome of one import.
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`

	// FailedEvents are the events that could not be written, in input
	// order.
	FailedEvents []model.MaterializedEvent `json:"-"`
}
