package calendar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/internal/repository/memory"
)

func newGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(DefaultGridConfig())
	require.NoError(t, err)
	return g
}

func appt(at time.Time, minutes int) *model.AppointmentWithPatient {
	return &model.AppointmentWithPatient{Appointment: model.Appointment{
		ID:              uuid.New(),
		AppointmentDate: at,
		Duration:        minutes,
		Status:          model.AppointmentStatusScheduled,
	}}
}

func TestGrid_SlotLabels(t *testing.T) {
	labels := newGrid(t).SlotLabels()
	require.Len(t, labels, 20)
	assert.Equal(t, "08:00", labels[0])
	assert.Equal(t, "08:30", labels[1])
	assert.Equal(t, "17:30", labels[19])
}

func TestNewGrid_RejectsBadShapes(t *testing.T) {
	_, err := NewGrid(GridConfig{SlotMinutes: 25, DayStartHour: 8, SlotCount: 20})
	assert.Error(t, err)
	_, err = NewGrid(GridConfig{SlotMinutes: 30, DayStartHour: 20, SlotCount: 20})
	assert.Error(t, err)
	_, err = NewGrid(GridConfig{SlotMinutes: 30, DayStartHour: 8, SlotCount: 0})
	assert.Error(t, err)
}

func TestGrid_WeekStartIsMonday(t *testing.T) {
	g := newGrid(t)
	monday := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		ref := monday.AddDate(0, 0, i).Add(13 * time.Hour)
		assert.Equal(t, monday, g.WeekStart(ref), "ref %s", ref.Weekday())
	}

	days := g.WeekDays(monday)
	require.Len(t, days, 7)
	assert.Equal(t, time.Sunday, days[6].Weekday())
}

func TestGrid_WeekStartAcrossYearBoundary(t *testing.T) {
	g := newGrid(t)
	// Wednesday 1 January 2025 belongs to the week starting Monday 30 December 2024.
	ref := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), g.WeekStart(ref))
}

func TestGrid_CellFor(t *testing.T) {
	g := newGrid(t)
	monday := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		cell  Cell
		ok    bool
	}{
		{"first slot", time.Date(2024, 2, 12, 8, 0, 0, 0, time.UTC), Cell{0, 0}, true},
		{"wednesday 10:30", time.Date(2024, 2, 14, 10, 30, 0, 0, time.UTC), Cell{2, 5}, true},
		{"off boundary floors", time.Date(2024, 2, 12, 9, 15, 0, 0, time.UTC), Cell{0, 2}, true},
		{"last slot", time.Date(2024, 2, 18, 17, 30, 0, 0, time.UTC), Cell{6, 19}, true},
		{"before hours", time.Date(2024, 2, 12, 7, 30, 0, 0, time.UTC), Cell{}, false},
		{"after hours", time.Date(2024, 2, 12, 18, 0, 0, 0, time.UTC), Cell{}, false},
		{"next week", time.Date(2024, 2, 19, 9, 0, 0, 0, time.UTC), Cell{}, false},
		{"previous week", time.Date(2024, 2, 11, 9, 0, 0, 0, time.UTC), Cell{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, ok := g.CellFor(monday, tt.start)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cell, cell)
		})
	}
}

func TestGrid_CellForUsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	cfg := DefaultGridConfig()
	cfg.Location = loc
	g, err := NewGrid(cfg)
	require.NoError(t, err)

	// 07:00 UTC is 09:00 local.
	start := time.Date(2024, 2, 12, 7, 0, 0, 0, time.UTC)
	cell, ok := g.CellFor(g.WeekStart(start), start)
	require.True(t, ok)
	assert.Equal(t, Cell{Day: 0, Slot: 2}, cell)
}

func TestProjection_SharedCellAndUnplaced(t *testing.T) {
	g := newGrid(t)
	monday := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)

	a := appt(time.Date(2024, 2, 13, 10, 0, 0, 0, time.UTC), 30)
	b := appt(time.Date(2024, 2, 13, 10, 15, 0, 0, time.UTC), 15)
	late := appt(time.Date(2024, 2, 13, 19, 0, 0, 0, time.UTC), 30)

	p := g.Project(monday, []*model.AppointmentWithPatient{a, b, late})
	inCell := p.AppointmentsInCell(1, 4)
	require.Len(t, inCell, 2)
	assert.Equal(t, a.ID, inCell[0].ID)
	assert.Equal(t, b.ID, inCell[1].ID)
	assert.Equal(t, []*model.AppointmentWithPatient{late}, p.Unplaced())

	view := p.WeekView()
	assert.Equal(t, "2024-02-12", view.Days[0])
	assert.Equal(t, "2024-02-18", view.Days[6])
	require.Len(t, view.Cells, 1)
	assert.Equal(t, 1, view.Cells[0].Day)
	assert.Equal(t, 4, view.Cells[0].Slot)
}

func TestGrid_DayViewHourlyRows(t *testing.T) {
	g := newGrid(t)
	day := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	a := appt(time.Date(2024, 2, 12, 9, 30, 0, 0, time.UTC), 30)
	other := appt(time.Date(2024, 2, 13, 9, 30, 0, 0, time.UTC), 30)

	view := g.DayView(day, []*model.AppointmentWithPatient{a, other})
	require.Len(t, view.Hours, 11)
	assert.Equal(t, "08:00", view.Hours[0].Label)
	assert.Equal(t, "18:00", view.Hours[10].Label)
	assert.Len(t, view.Hours[1].Appointments, 1)
	assert.Equal(t, "2024-02-12", view.Date)
}

func TestNavigator_NextPreviousRoundTrip(t *testing.T) {
	g := newGrid(t)
	clock := func() time.Time { return time.Date(2024, 2, 14, 11, 0, 0, 0, time.UTC) }
	n := NewNavigator(g, time.Time{}, clock)

	start := n.WeekStart()
	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), start)

	next := n.NextWeek()
	assert.Equal(t, 7*24*time.Hour, next.Sub(start))
	assert.Equal(t, start, n.PreviousWeek())

	n.PreviousWeek()
	n.PreviousWeek()
	assert.Equal(t, start, n.Today())
}

func TestNavigator_ExactWeekStepsAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("zoneinfo unavailable")
	}
	cfg := DefaultGridConfig()
	cfg.Location = loc
	g, err := NewGrid(cfg)
	require.NoError(t, err)

	// Clocks go forward on Sunday 31 March 2024.
	n := NewNavigator(g, time.Date(2024, 3, 27, 10, 0, 0, 0, loc), nil)
	next := n.NextWeek()
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, loc), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestParseNavigation(t *testing.T) {
	nav, err := ParseNavigation("next")
	require.NoError(t, err)
	assert.Equal(t, NavigateNext, nav)

	_, err = ParseNavigation("sideways")
	assert.Error(t, err)
}

func TestService_WeekCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	doctorID := uuid.New()
	patient := &model.Patient{DoctorID: doctorID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, store.Patients().Create(ctx, patient))

	clock := func() time.Time { return time.Date(2024, 2, 14, 11, 0, 0, 0, time.UTC) }
	svc := NewService(newGrid(t), store.Appointments(), time.Minute, clock)

	view, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNone)
	require.NoError(t, err)
	assert.Empty(t, view.Cells)

	a := &model.Appointment{
		DoctorID: doctorID, PatientID: patient.ID,
		AppointmentDate: time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC),
		Duration:        30, Status: model.AppointmentStatusScheduled,
	}
	require.NoError(t, store.Appointments().Create(ctx, a, nil))

	cached, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNone)
	require.NoError(t, err)
	assert.Empty(t, cached.Cells)

	svc.Invalidate(doctorID)
	fresh, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNone)
	require.NoError(t, err)
	require.Len(t, fresh.Cells, 1)
	assert.Equal(t, "Kone", fresh.Cells[0].Appointments[0].Patient.LastName)

	nextWeek, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNext)
	require.NoError(t, err)
	assert.Empty(t, nextWeek.Cells)
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC), nextWeek.WeekStart)
}

// pausingAppointments holds the first range read until release is closed.
type pausingAppointments struct {
	repository.AppointmentRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *pausingAppointments) ListForDoctorInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error) {
	appts, err := p.AppointmentRepository.ListForDoctorInRange(ctx, doctorID, start, end)
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return appts, err
}

func TestService_WeekReadRacingInvalidateIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	doctorID := uuid.New()
	patient := &model.Patient{DoctorID: doctorID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, store.Patients().Create(ctx, patient))

	repo := &pausingAppointments{
		AppointmentRepository: store.Appointments(),
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
	clock := func() time.Time { return time.Date(2024, 2, 14, 11, 0, 0, 0, time.UTC) }
	svc := NewService(newGrid(t), repo, time.Minute, clock)

	done := make(chan *model.WeekView)
	go func() {
		view, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNone)
		assert.NoError(t, err)
		done <- view
	}()
	<-repo.entered

	a := &model.Appointment{
		DoctorID: doctorID, PatientID: patient.ID,
		AppointmentDate: time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC),
		Duration:        30, Status: model.AppointmentStatusScheduled,
	}
	require.NoError(t, store.Appointments().Create(ctx, a, nil))
	svc.Invalidate(doctorID)
	close(repo.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Empty(t, stale.Cells)

	fresh, err := svc.Week(ctx, doctorID, time.Time{}, NavigateNone)
	require.NoError(t, err)
	require.Len(t, fresh.Cells, 1, "week read before the change must not stay cached")
	assert.Equal(t, a.ID, fresh.Cells[0].Appointments[0].ID)
}

func TestGrid_RangesEndOnLastMicrosecond(t *testing.T) {
	g := newGrid(t)
	ref := time.Date(2024, 2, 14, 11, 0, 0, 0, time.UTC)

	start, end := g.DayRange(ref)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 14, 23, 59, 59, 999999000, time.UTC), end)

	start, end = g.WeekRange(ref)
	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 18, 23, 59, 59, 999999000, time.UTC), end)
	assert.Equal(t, end, end.Truncate(time.Microsecond))
}

func TestService_DayExcludesNextMidnight(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	doctorID := uuid.New()
	patient := &model.Patient{DoctorID: doctorID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, store.Patients().Create(ctx, patient))

	for _, at := range []time.Time{
		time.Date(2024, 2, 14, 23, 30, 0, 0, time.UTC),
		time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
	} {
		a := &model.Appointment{
			DoctorID: doctorID, PatientID: patient.ID, AppointmentDate: at,
			Duration: 15, Status: model.AppointmentStatusScheduled,
		}
		require.NoError(t, store.Appointments().Create(ctx, a, nil))
	}

	clock := func() time.Time { return time.Date(2024, 2, 14, 11, 0, 0, 0, time.UTC) }
	svc := NewService(newGrid(t), store.Appointments(), time.Minute, clock)

	today, err := svc.Today(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, 23, today[0].AppointmentDate.Hour())
}
