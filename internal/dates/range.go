package dates

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Range is an inclusive span of days. It is empty when Start is after End;
// the wizard consumes a range from the front until it is empty.
type Range struct {
	Start Day `json:"start" yaml:"start"`
	End   Day `json:"end" yaml:"end"`
}

// NewRange returns the inclusive range [start, end].
func NewRange(start, end Day) Range {
	return Range{Start: start, End: end}
}

func (r Range) IsEmpty() bool {
	return r.Start.After(r.End)
}

// AdvanceStart moves the start by offset days. Moving forward on an empty
// range is a no-op so an exhausted cursor stays put; moving backward is
// always allowed so undo can bring back the last consumed day.
func (r Range) AdvanceStart(offset int) Range {
	if r.IsEmpty() && offset >= 0 {
		return r
	}
	return Range{Start: r.Start.AddDays(offset), End: r.End}
}

func (r Range) LaterStart() Range   { return r.AdvanceStart(1) }
func (r Range) EarlierStart() Range { return r.AdvanceStart(-1) }

// Len returns the number of days in r (0 when empty).
func (r Range) Len() int {
	if r.IsEmpty() {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

// Contains reports whether d lies within r.
func (r Range) Contains(d Day) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days lists every day of r in order.
func (r Range) Days() []Day {
	out := make([]Day, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%s..%s]", r.Start, r.End)
}

// ContainingMonth returns the first through last day of d's month.
func ContainingMonth(d Day) Range {
	first := Of(d.Year, d.Month, 1)
	last := Of(d.Year, d.Month+1, 1).AddDays(-1)
	return Range{Start: first, End: last}
}

// UpcomingMonths returns the ranges of today's month and the n-1 months
// that follow it, in order.
func UpcomingMonths(today Day, n int) ([]Range, error) {
	if n <= 0 {
		return []Range{}, nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.MONTHLY,
		Count:   n,
		Dtstart: time.Date(today.Year, today.Month, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, fmt.Errorf("month presets: %w", err)
	}

	starts := r.All()
	out := make([]Range, 0, len(starts))
	for _, s := range starts {
		out = append(out, ContainingMonth(DayOf(s)))
	}
	return out, nil
}
