package doctor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/internal/service/calendar"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
)

func setup(t *testing.T) (*memory.Store, Service, *model.Doctor) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	user := &model.AuthUser{Email: "fatou@example.ci", PasswordHash: "x"}
	require.NoError(t, store.AuthUsers().Create(ctx, user))
	doctor := &model.Doctor{ID: user.ID, Email: user.Email, FirstName: "Fatou", LastName: "Diallo", Phone: "0707070707", Speciality: "Pédiatrie"}
	require.NoError(t, store.Doctors().Create(ctx, doctor))

	grid, err := calendar.NewGrid(calendar.DefaultGridConfig())
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2024, 2, 15, 7, 0, 0, 0, time.UTC) }
	cal := calendar.NewService(grid, store.Appointments(), time.Minute, now)

	return store, NewService(store.Doctors(), store.AuthUsers(), store.Patients(), store.Appointments(), cal), doctor
}

func TestUpdateProfile_EmailMovesIdentity(t *testing.T) {
	store, svc, doctor := setup(t)
	ctx := context.Background()

	email := "Dr.Fatou@Example.ci"
	speciality := "Cardiologie"
	updated, err := svc.UpdateProfile(ctx, doctor.ID, &model.UpdateProfileRequest{Email: &email, Speciality: &speciality})
	require.NoError(t, err)
	assert.Equal(t, "dr.fatou@example.ci", updated.Email)
	assert.Equal(t, "Cardiologie", updated.Speciality)

	user, err := store.AuthUsers().GetByEmail(ctx, "dr.fatou@example.ci")
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, user.ID)
}

func TestUpdateProfile_DuplicateEmail(t *testing.T) {
	store, svc, doctor := setup(t)
	ctx := context.Background()
	require.NoError(t, store.AuthUsers().Create(ctx, &model.AuthUser{Email: "taken@example.ci"}))

	email := "taken@example.ci"
	_, err := svc.UpdateProfile(ctx, doctor.ID, &model.UpdateProfileRequest{Email: &email})
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateProfile_RejectsBadPhone(t *testing.T) {
	_, svc, doctor := setup(t)
	phone := "123"
	_, err := svc.UpdateProfile(context.Background(), doctor.ID, &model.UpdateProfileRequest{Phone: &phone})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestSettings_DefaultsThenUpdate(t *testing.T) {
	_, svc, doctor := setup(t)
	ctx := context.Background()

	st, err := svc.GetSettings(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, st.DefaultDuration)
	assert.Equal(t, 5, st.BufferMinutes)
	assert.Equal(t, 10000, st.ConsultationPrice)
	assert.Equal(t, "XOF", st.Currency)

	price := 15000
	st, err = svc.UpdateSettings(ctx, doctor.ID, &model.UpdateSettingsRequest{ConsultationPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 15000, st.ConsultationPrice)
	assert.Equal(t, 30, st.DefaultDuration)

	st, err = svc.GetSettings(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000, st.ConsultationPrice)
}

func TestDashboard(t *testing.T) {
	store, svc, doctor := setup(t)
	ctx := context.Background()

	p := &model.Patient{DoctorID: doctor.ID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, store.Patients().Create(ctx, p))
	for i, st := range []model.AppointmentStatus{
		model.AppointmentStatusScheduled,
		model.AppointmentStatusScheduled,
		model.AppointmentStatusCompleted,
	} {
		a := &model.Appointment{
			ID: uuid.New(), DoctorID: doctor.ID, PatientID: p.ID,
			AppointmentDate: time.Date(2024, 2, 15+i, 10, 0, 0, 0, time.UTC), Duration: 30,
			Status: st, Type: model.AppointmentTypeTeleconsultation,
		}
		require.NoError(t, store.Appointments().Create(ctx, a, nil))
	}

	stats, err := svc.Dashboard(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 3, stats.TotalAppointments)
	assert.Equal(t, 1, stats.CompletedAppointments)
	assert.Equal(t, 2, stats.UpcomingAppointments)
	require.Len(t, stats.TodayAppointments, 1)
	assert.Equal(t, "Kone", stats.TodayAppointments[0].Patient.LastName)
}
