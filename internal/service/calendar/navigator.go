package calendar

import (
	"fmt"
	"time"
)

type Navigation string

const (
	NavigateNone     Navigation = ""
	NavigateNext     Navigation = "next"
	NavigatePrevious Navigation = "previous"
	NavigateToday    Navigation = "today"
)

func ParseNavigation(s string) (Navigation, error) {
	switch n := Navigation(s); n {
	case NavigateNone, NavigateNext, NavigatePrevious, NavigateToday:
		return n, nil
	}
	return NavigateNone, fmt.Errorf("unknown navigation %q", s)
}

// Navigator tracks the reference date of a displayed week.
type Navigator struct {
	grid *Grid
	now  func() time.Time
	ref  time.Time
}

// NewNavigator starts at ref; a zero ref means today.
func NewNavigator(grid *Grid, ref time.Time, now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	if ref.IsZero() {
		ref = now()
	}
	return &Navigator{grid: grid, now: now, ref: ref.In(grid.Location())}
}

func (n *Navigator) Reference() time.Time {
	return n.ref
}

func (n *Navigator) WeekStart() time.Time {
	return n.grid.WeekStart(n.ref)
}

func (n *Navigator) NextWeek() time.Time {
	n.ref = n.grid.ShiftWeeks(n.ref, 1)
	return n.WeekStart()
}

func (n *Navigator) PreviousWeek() time.Time {
	n.ref = n.grid.ShiftWeeks(n.ref, -1)
	return n.WeekStart()
}

func (n *Navigator) Today() time.Time {
	n.ref = n.now().In(n.grid.Location())
	return n.WeekStart()
}

func (n *Navigator) Apply(nav Navigation) time.Time {
	switch nav {
	case NavigateNext:
		return n.NextWeek()
	case NavigatePrevious:
		return n.PreviousWeek()
	case NavigateToday:
		return n.Today()
	}
	return n.WeekStart()
}
