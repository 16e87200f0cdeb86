package calendar

import (
	"sort"
	"time"

	"github.com/famalink/telemed-api/internal/model"
)

// Cell addresses one (day, slot) position of the week grid.
type Cell struct {
	Day  int
	Slot int
}

// Projection is a week of appointments laid out on a Grid.
type Projection struct {
	grid      *Grid
	weekStart time.Time
	cells     map[Cell][]*model.AppointmentWithPatient
	unplaced  []*model.AppointmentWithPatient
}

// Project lays appointments onto the week containing ref. Several appointments
// may share a cell; input order is kept within a cell.
func (g *Grid) Project(ref time.Time, appointments []*model.AppointmentWithPatient) *Projection {
	p := &Projection{
		grid:      g,
		weekStart: g.WeekStart(ref),
		cells:     make(map[Cell][]*model.AppointmentWithPatient),
	}
	for _, a := range appointments {
		cell, ok := g.CellFor(p.weekStart, a.AppointmentDate)
		if !ok {
			p.unplaced = append(p.unplaced, a)
			continue
		}
		p.cells[cell] = append(p.cells[cell], a)
	}
	return p
}

func (p *Projection) WeekStart() time.Time {
	return p.weekStart
}

// CellFor returns the cell an appointment occupies in this week.
func (p *Projection) CellFor(a *model.Appointment) (Cell, bool) {
	return p.grid.CellFor(p.weekStart, a.AppointmentDate)
}

func (p *Projection) AppointmentsInCell(day, slot int) []*model.AppointmentWithPatient {
	return p.cells[Cell{Day: day, Slot: slot}]
}

// Unplaced lists appointments of the input that fall outside the grid.
func (p *Projection) Unplaced() []*model.AppointmentWithPatient {
	return p.unplaced
}

// WeekView renders the projection with non-empty cells in day, slot order.
func (p *Projection) WeekView() *model.WeekView {
	days := p.grid.WeekDays(p.weekStart)
	dayLabels := make([]string, len(days))
	for i, d := range days {
		dayLabels[i] = d.Format("2006-01-02")
	}

	cells := make([]model.CalendarCell, 0, len(p.cells))
	for c, appts := range p.cells {
		cells = append(cells, model.CalendarCell{Day: c.Day, Slot: c.Slot, Appointments: appts})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day != cells[j].Day {
			return cells[i].Day < cells[j].Day
		}
		return cells[i].Slot < cells[j].Slot
	})

	return &model.WeekView{
		WeekStart: p.weekStart,
		Days:      dayLabels,
		Slots:     p.grid.SlotLabels(),
		Cells:     cells,
		Unplaced:  p.unplaced,
	}
}

// DayView groups the appointments of one day into hourly rows spanning the
// grid's hours, both ends included.
func (g *Grid) DayView(day time.Time, appointments []*model.AppointmentWithPatient) *model.DayView {
	first := g.cfg.DayStartHour
	last := first + (g.cfg.SlotCount*g.cfg.SlotMinutes)/60

	y, m, d := day.In(g.cfg.Location).Date()
	hours := make([]model.DayHour, 0, last-first+1)
	index := make(map[int]int, last-first+1)
	for h := first; h <= last; h++ {
		index[h] = len(hours)
		hours = append(hours, model.DayHour{
			Label:        time.Date(y, m, d, h, 0, 0, 0, g.cfg.Location).Format("15:04"),
			Appointments: []*model.AppointmentWithPatient{},
		})
	}

	for _, a := range appointments {
		t := a.AppointmentDate.In(g.cfg.Location)
		ay, am, ad := t.Date()
		if ay != y || am != m || ad != d {
			continue
		}
		if i, ok := index[t.Hour()]; ok {
			hours[i].Appointments = append(hours[i].Appointments, a)
		}
	}

	return &model.DayView{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, g.cfg.Location).Format("2006-01-02"),
		Hours: hours,
	}
}
