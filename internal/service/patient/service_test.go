package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/internal/service/audit"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(uuid.UUID) { c.n++ }

func newService(store *memory.Store) (*Service, *countingInvalidator) {
	cal := &countingInvalidator{}
	svc := NewService(store.Patients(), store.Appointments(), store.Consultations(), cal, audit.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC) }
	return svc, cal
}

func createReq(first, last, phone string) *model.CreatePatientRequest {
	return &model.CreatePatientRequest{FirstName: first, LastName: last, Phone: phone}
}

func addAppointment(t *testing.T, store *memory.Store, p *model.Patient, start time.Time, status model.AppointmentStatus) {
	t.Helper()
	a := &model.Appointment{
		DoctorID: p.DoctorID, PatientID: p.ID, AppointmentDate: start, Duration: 30,
		Status: status, Type: model.AppointmentTypeInPerson,
	}
	require.NoError(t, store.Appointments().Create(context.Background(), a, nil))
}

func TestCreatePatient_NormalizesPhone(t *testing.T) {
	svc, _ := newService(memory.NewStore())

	p, err := svc.CreatePatient(context.Background(), uuid.New(), createReq(" Awa ", "Kone", "+225 07 01 02 03 04"))
	require.NoError(t, err)
	assert.Equal(t, "Awa", p.FirstName)
	assert.Equal(t, "+2250701020304", p.Phone)
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _ := newService(memory.NewStore())
	ctx := context.Background()
	doctorID := uuid.New()

	_, err := svc.CreatePatient(ctx, doctorID, createReq("Awa", "Kone", "12345"))
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = svc.CreatePatient(ctx, doctorID, createReq("", "Kone", "0701020304"))
	assert.True(t, apperrors.IsBadRequest(err))

	g := model.Gender("X")
	req := createReq("Awa", "Kone", "0701020304")
	req.Gender = &g
	_, err = svc.CreatePatient(ctx, doctorID, req)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestGetPatient_DetailWithAgeAndHistory(t *testing.T) {
	store := memory.NewStore()
	svc, _ := newService(store)
	ctx := context.Background()
	doctorID := uuid.New()

	dob := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
	req := createReq("Awa", "Kone", "0701020304")
	req.DateOfBirth = &dob
	p, err := svc.CreatePatient(ctx, doctorID, req)
	require.NoError(t, err)

	addAppointment(t, store, p, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), model.AppointmentStatusCompleted)
	addAppointment(t, store, p, time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC), model.AppointmentStatusCompleted)

	detail, err := svc.GetPatient(ctx, doctorID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Age)
	assert.Equal(t, 33, *detail.Age)
	require.Len(t, detail.Appointments, 2)
	assert.Equal(t, 2, int(detail.Appointments[0].AppointmentDate.Month()))
	assert.NotNil(t, detail.Consultations)

	_, err = svc.GetPatient(ctx, uuid.New(), p.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdatePatient_PartialFields(t *testing.T) {
	svc, _ := newService(memory.NewStore())
	ctx := context.Background()
	doctorID := uuid.New()

	p, err := svc.CreatePatient(ctx, doctorID, createReq("Awa", "Kone", "0701020304"))
	require.NoError(t, err)

	last := "Traore"
	updated, err := svc.UpdatePatient(ctx, doctorID, p.ID, &model.UpdatePatientRequest{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Awa", updated.FirstName)
	assert.Equal(t, "Traore", updated.LastName)

	bad := "99"
	_, err = svc.UpdatePatient(ctx, doctorID, p.ID, &model.UpdatePatientRequest{Phone: &bad})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestDeletePatient_BlockedWhileScheduled(t *testing.T) {
	store := memory.NewStore()
	svc, cal := newService(store)
	ctx := context.Background()
	doctorID := uuid.New()

	p, err := svc.CreatePatient(ctx, doctorID, createReq("Awa", "Kone", "0701020304"))
	require.NoError(t, err)
	addAppointment(t, store, p, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), model.AppointmentStatusScheduled)

	err = svc.DeletePatient(ctx, doctorID, p.ID)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 0, cal.n)

	_, err = svc.GetPatient(ctx, doctorID, p.ID)
	assert.NoError(t, err)
}

func TestDeletePatient_CascadesHistory(t *testing.T) {
	store := memory.NewStore()
	svc, cal := newService(store)
	ctx := context.Background()
	doctorID := uuid.New()

	p, err := svc.CreatePatient(ctx, doctorID, createReq("Awa", "Kone", "0701020304"))
	require.NoError(t, err)
	addAppointment(t, store, p, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), model.AppointmentStatusCompleted)

	require.NoError(t, svc.DeletePatient(ctx, doctorID, p.ID))
	assert.Equal(t, 1, cal.n)

	_, err = svc.GetPatient(ctx, doctorID, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	appts, err := store.Appointments().ListForPatient(ctx, doctorID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestListPatients_SearchAndTotal(t *testing.T) {
	svc, _ := newService(memory.NewStore())
	ctx := context.Background()
	doctorID := uuid.New()

	for _, r := range []*model.CreatePatientRequest{
		createReq("Awa", "Kone", "0701020304"),
		createReq("Moussa", "Bamba", "0501020304"),
		createReq("Aya", "Yao", "0101020304"),
	} {
		_, err := svc.CreatePatient(ctx, doctorID, r)
		require.NoError(t, err)
	}

	items, total, err := svc.ListPatients(ctx, doctorID, model.PatientFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "Bamba", items[0].LastName)

	items, _, err = svc.ListPatients(ctx, doctorID, model.PatientFilter{Search: "kon"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Awa", items[0].FirstName)

	items, _, err = svc.ListPatients(ctx, uuid.New(), model.PatientFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}
