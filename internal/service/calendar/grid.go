package calendar

import (
	"fmt"
	"time"
)

const DaysPerWeek = 7

type GridConfig struct {
	SlotMinutes  int
	DayStartHour int
	SlotCount    int
	Location     *time.Location
}

// DefaultGridConfig is the 30 minute grid from 08:00 to 18:00.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		SlotMinutes:  30,
		DayStartHour: 8,
		SlotCount:    20,
		Location:     time.UTC,
	}
}

// Grid lays out a week as 7 Monday-first days by SlotCount time slots.
// All calendar math happens in the grid's Location.
type Grid struct {
	cfg    GridConfig
	labels []string
}

func NewGrid(cfg GridConfig) (*Grid, error) {
	if cfg.SlotMinutes <= 0 || 60%cfg.SlotMinutes != 0 {
		return nil, fmt.Errorf("slot minutes must divide 60, got %d", cfg.SlotMinutes)
	}
	if cfg.SlotCount <= 0 {
		return nil, fmt.Errorf("slot count must be positive, got %d", cfg.SlotCount)
	}
	if cfg.DayStartHour < 0 || cfg.DayStartHour*60+cfg.SlotCount*cfg.SlotMinutes > 24*60 {
		return nil, fmt.Errorf("grid starting at %02d:00 with %d slots overflows the day", cfg.DayStartHour, cfg.SlotCount)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	labels := make([]string, cfg.SlotCount)
	for i := range labels {
		m := cfg.DayStartHour*60 + i*cfg.SlotMinutes
		labels[i] = fmt.Sprintf("%02d:%02d", m/60, m%60)
	}

	return &Grid{cfg: cfg, labels: labels}, nil
}

func (g *Grid) Config() GridConfig {
	return g.cfg
}

func (g *Grid) Location() *time.Location {
	return g.cfg.Location
}

// SlotLabels returns the "HH:MM" row labels. The slice is a copy.
func (g *Grid) SlotLabels() []string {
	out := make([]string, len(g.labels))
	copy(out, g.labels)
	return out
}

// WeekStart returns midnight of the Monday of the week containing ref.
func (g *Grid) WeekStart(ref time.Time) time.Time {
	t := ref.In(g.cfg.Location)
	sinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, g.cfg.Location)
}

// WeekDays returns midnight of Monday through Sunday of the week containing ref.
func (g *Grid) WeekDays(ref time.Time) []time.Time {
	start := g.WeekStart(ref)
	y, m, d := start.Date()
	days := make([]time.Time, DaysPerWeek)
	for i := range days {
		days[i] = time.Date(y, m, d+i, 0, 0, 0, 0, g.cfg.Location)
	}
	return days
}

// WeekRange returns the closed interval covering the whole week of ref. The
// end is one microsecond before the next Monday, the finest precision Postgres
// timestamps keep.
func (g *Grid) WeekRange(ref time.Time) (time.Time, time.Time) {
	start := g.WeekStart(ref)
	y, m, d := start.Date()
	next := time.Date(y, m, d+DaysPerWeek, 0, 0, 0, 0, g.cfg.Location)
	return start, next.Add(-time.Microsecond)
}

// DayRange returns the closed interval covering the calendar day of ref, with
// the same microsecond end as WeekRange.
func (g *Grid) DayRange(ref time.Time) (time.Time, time.Time) {
	y, m, d := ref.In(g.cfg.Location).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, g.cfg.Location)
	next := time.Date(y, m, d+1, 0, 0, 0, 0, g.cfg.Location)
	return start, next.Add(-time.Microsecond)
}

// ShiftWeeks moves ref by n calendar weeks, keeping the wall clock time.
func (g *Grid) ShiftWeeks(ref time.Time, n int) time.Time {
	return ref.In(g.cfg.Location).AddDate(0, 0, 7*n)
}

// SlotStart is the instant at which slot begins on day.
func (g *Grid) SlotStart(day time.Time, slot int) time.Time {
	y, m, d := day.In(g.cfg.Location).Date()
	minutes := g.cfg.DayStartHour*60 + slot*g.cfg.SlotMinutes
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, g.cfg.Location)
}

// dayIndex counts calendar days from weekStart to t, ignoring DST shifts.
func (g *Grid) dayIndex(weekStart, t time.Time) int {
	wy, wm, wd := weekStart.In(g.cfg.Location).Date()
	ty, tm, td := t.In(g.cfg.Location).Date()
	a := time.Date(wy, wm, wd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// CellFor places start on the grid of the week beginning at weekStart.
// A start between two slot boundaries is floored to the slot containing it,
// so 09:15 on a 30 minute grid lands in the 09:00 row. ok is false when start
// is outside the week or outside the displayed hours.
func (g *Grid) CellFor(weekStart, start time.Time) (cell Cell, ok bool) {
	day := g.dayIndex(weekStart, start)
	if day < 0 || day >= DaysPerWeek {
		return Cell{}, false
	}

	t := start.In(g.cfg.Location)
	offset := t.Hour()*60 + t.Minute() - g.cfg.DayStartHour*60
	if offset < 0 {
		return Cell{}, false
	}
	slot := offset / g.cfg.SlotMinutes
	if slot >= g.cfg.SlotCount {
		return Cell{}, false
	}
	return Cell{Day: day, Slot: slot}, true
}
