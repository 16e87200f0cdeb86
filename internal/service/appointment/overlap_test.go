package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/famalink/telemed-api/internal/model"
)

func slot(start time.Time, minutes int) model.TimeSlot {
	return model.TimeSlot{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b model.TimeSlot
		want bool
	}{
		{"same interval", slot(base, 30), slot(base, 30), true},
		{"starts inside", slot(base, 30), slot(base.Add(15*time.Minute), 30), true},
		{"contains", slot(base, 60), slot(base.Add(15*time.Minute), 15), true},
		{"touching after", slot(base, 30), slot(base.Add(30*time.Minute), 30), false},
		{"touching before", slot(base, 30), slot(base.Add(-30*time.Minute), 30), false},
		{"disjoint", slot(base, 15), slot(base.Add(time.Hour), 15), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a))
		})
	}
}

func TestFindConflicts_OnlyScheduledOfSameDoctor(t *testing.T) {
	doctorID := uuid.New()
	start := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	mk := func(doctor uuid.UUID, status model.AppointmentStatus) *model.Appointment {
		return &model.Appointment{ID: uuid.New(), DoctorID: doctor, AppointmentDate: start, Duration: 30, Status: status}
	}

	clash := mk(doctorID, model.AppointmentStatusScheduled)
	existing := []*model.Appointment{
		clash,
		mk(doctorID, model.AppointmentStatusCancelled),
		mk(doctorID, model.AppointmentStatusNoShow),
		mk(uuid.New(), model.AppointmentStatusScheduled),
	}

	candidate := &model.Appointment{
		DoctorID: doctorID, AppointmentDate: start.Add(15 * time.Minute), Duration: 30,
		Status: model.AppointmentStatusScheduled,
	}
	assert.Equal(t, []*model.Appointment{clash}, FindConflicts(candidate, existing))
}

func TestFindConflicts_PreexistingOverlapsAllReported(t *testing.T) {
	doctorID := uuid.New()
	start := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	a := &model.Appointment{ID: uuid.New(), DoctorID: doctorID, AppointmentDate: start, Duration: 30, Status: model.AppointmentStatusScheduled}
	b := &model.Appointment{ID: uuid.New(), DoctorID: doctorID, AppointmentDate: start, Duration: 30, Status: model.AppointmentStatusScheduled}

	candidate := &model.Appointment{DoctorID: doctorID, AppointmentDate: start.Add(20 * time.Minute), Duration: 15, Status: model.AppointmentStatusScheduled}
	assert.Len(t, FindConflicts(candidate, []*model.Appointment{a, b}), 2)
}

func TestValidateDuration(t *testing.T) {
	allowed := []int{15, 30, 45, 60}
	assert.NoError(t, ValidateDuration(45, allowed))
	assert.ErrorIs(t, ValidateDuration(0, allowed), ErrInvalidDuration)
	assert.ErrorIs(t, ValidateDuration(-15, nil), ErrInvalidDuration)
	assert.ErrorIs(t, ValidateDuration(90, allowed), ErrInvalidDuration)
	assert.NoError(t, ValidateDuration(90, nil))
}
