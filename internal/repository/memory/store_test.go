package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

func seedPatient(t *testing.T, s *Store, doctorID uuid.UUID) *model.Patient {
	t.Helper()
	p := &model.Patient{DoctorID: doctorID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, s.Patients().Create(context.Background(), p))
	return p
}

func TestAppointments_RejectsOverlapOfScheduled(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctorID := uuid.New()
	p := seedPatient(t, s, doctorID)
	at := time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC)

	first := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: at, Duration: 30, Status: model.AppointmentStatusScheduled}
	require.NoError(t, s.Appointments().Create(ctx, first, nil))

	clash := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: at.Add(15 * time.Minute), Duration: 30, Status: model.AppointmentStatusScheduled}
	assert.ErrorIs(t, s.Appointments().Create(ctx, clash, nil), repository.ErrOverlap)

	touching := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: at.Add(30 * time.Minute), Duration: 30, Status: model.AppointmentStatusScheduled}
	assert.NoError(t, s.Appointments().Create(ctx, touching, nil))

	require.NoError(t, s.Appointments().UpdateStatus(ctx, doctorID, first.ID, model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, nil))
	again := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: at, Duration: 30, Status: model.AppointmentStatusScheduled}
	assert.NoError(t, s.Appointments().Create(ctx, again, nil), "cancelled appointments free their slot")
}

func TestAppointments_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctorID := uuid.New()
	p := seedPatient(t, s, doctorID)

	a := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: time.Now(), Duration: 30, Status: model.AppointmentStatusScheduled}
	require.NoError(t, s.Appointments().Create(ctx, a, nil))
	require.NoError(t, s.Appointments().UpdateStatus(ctx, doctorID, a.ID, model.AppointmentStatusScheduled, model.AppointmentStatusCompleted, nil))

	err := s.Appointments().UpdateStatus(ctx, doctorID, a.ID, model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, nil)
	assert.ErrorIs(t, err, repository.ErrStatusChanged)

	err = s.Appointments().UpdateStatus(ctx, uuid.New(), a.ID, model.AppointmentStatusCompleted, model.AppointmentStatusCancelled, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPatients_DeleteBlockedThenCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctorID := uuid.New()
	p := seedPatient(t, s, doctorID)

	a := &model.Appointment{DoctorID: doctorID, PatientID: p.ID, AppointmentDate: time.Now(), Duration: 30, Status: model.AppointmentStatusScheduled}
	require.NoError(t, s.Appointments().Create(ctx, a, nil))
	aid := a.ID
	require.NoError(t, s.Consultations().Create(ctx, &model.Consultation{AppointmentID: &aid, DoctorID: doctorID, PatientID: p.ID, ConsultationType: model.ConsultationTypeVideo}))

	assert.ErrorIs(t, s.Patients().Delete(ctx, doctorID, p.ID), repository.ErrPatientHasScheduled)
	_, err := s.Patients().Get(ctx, doctorID, p.ID)
	require.NoError(t, err)

	require.NoError(t, s.Appointments().UpdateStatus(ctx, doctorID, a.ID, model.AppointmentStatusScheduled, model.AppointmentStatusCompleted, nil))
	require.NoError(t, s.Patients().Delete(ctx, doctorID, p.ID))

	_, err = s.Patients().Get(ctx, doctorID, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	left, err := s.Appointments().ListForPatient(ctx, doctorID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	consults, err := s.Consultations().List(ctx, doctorID)
	require.NoError(t, err)
	assert.Empty(t, consults)
}

func TestOutbox_ClaimSkipsClaimedAndFinishedEvents(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctorID := uuid.New()
	p := seedPatient(t, s, doctorID)

	for i := 0; i < 3; i++ {
		a := &model.Appointment{
			ID: uuid.New(), DoctorID: doctorID, PatientID: p.ID,
			AppointmentDate: time.Date(2024, 2, 12, 9+i, 0, 0, 0, time.UTC), Duration: 30,
			Status: model.AppointmentStatusScheduled,
		}
		ev, err := model.NewAppointmentEvent(model.EventAppointmentCreated, a, "")
		require.NoError(t, err)
		require.NoError(t, s.Appointments().Create(ctx, a, ev))
	}

	first, err := s.Outbox().ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := s.Outbox().ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	require.NoError(t, s.Outbox().MarkProcessed(ctx, first[0].ID))
	require.NoError(t, s.Outbox().MarkFailed(ctx, first[1].ID, "broker down", false))

	again, err := s.Outbox().ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[1].ID, again[0].ID)

	pending, err := s.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}
