package model

import "time"

// CalendarCell holds the appointments placed at (Day, Slot) of a week grid.
type CalendarCell struct {
	Day          int                       `json:"day"`
	Slot         int                       `json:"slot"`
	Appointments []*AppointmentWithPatient `json:"appointments"`
}

type WeekView struct {
	WeekStart time.Time      `json:"week_start"`
	Days      []string       `json:"days"`
	Slots     []string       `json:"slots"`
	Cells     []CalendarCell `json:"cells"`
	// Unplaced are appointments of the week outside the displayed hours.
	Unplaced []*AppointmentWithPatient `json:"unplaced,omitempty"`
}

type DayHour struct {
	Label        string                    `json:"label"`
	Appointments []*AppointmentWithPatient `json:"appointments"`
}

type DayView struct {
	Date  string    `json:"date"`
	Hours []DayHour `json:"hours"`
}
