package consultation

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/internal/service/appointment"
	"github.com/famalink/telemed-api/internal/service/audit"
	"github.com/famalink/telemed-api/pkg/chat"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/lock"
	"github.com/famalink/telemed-api/pkg/metrics"
	"github.com/famalink/telemed-api/pkg/video"
)

type mockRooms struct {
	mock.Mock
}

func (m *mockRooms) CreateRoom(ctx context.Context, consultationID string) (string, error) {
	args := m.Called(ctx, consultationID)
	return args.String(0), args.Error(1)
}

type mockChat struct {
	mock.Mock
}

func (m *mockChat) OpenSession(ctx context.Context, channelID string, owner chat.Member, others ...chat.Member) (*chat.Session, error) {
	args := m.Called(ctx, channelID, owner, others)
	s, _ := args.Get(0).(*chat.Session)
	return s, args.Error(1)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(uuid.UUID) {}

type fixture struct {
	store  *memory.Store
	svc    Service
	rooms  *mockRooms
	chat   *mockChat
	doctor *model.Doctor
	appt   *model.Appointment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.New("test")

	doctor := &model.Doctor{FirstName: "Fatou", LastName: "Diallo", Email: "f@example.ci", Phone: "0707070707", Speciality: "Généraliste"}
	require.NoError(t, store.Doctors().Create(ctx, doctor))

	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	patient := &model.Patient{DoctorID: doctor.ID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304", DateOfBirth: &dob}
	require.NoError(t, store.Patients().Create(ctx, patient))

	appts := appointment.NewService(store.Appointments(), store.Patients(), lock.NewKeyedMutex(), noopInvalidator{}, m, appointment.Config{})
	duration := 30
	appt, err := appts.Create(ctx, doctor.ID, &model.CreateAppointmentRequest{
		PatientID: patient.ID, AppointmentDate: time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC), Duration: &duration,
	})
	require.NoError(t, err)

	f := &fixture{store: store, rooms: &mockRooms{}, chat: &mockChat{}, doctor: doctor, appt: appt}
	f.svc = NewService(Dependencies{
		Consultations: store.Consultations(),
		Patients:      store.Patients(),
		Doctors:       store.Doctors(),
		Appointments:  appts,
		Video:         f.rooms,
		Chat:          f.chat,
		Locker:        lock.NewKeyedMutex(),
		Auditor:       audit.NewNop(),
		Metrics:       m,
	})
	return f
}

func (f *fixture) start(t *testing.T, typ model.ConsultationType) *model.Consultation {
	t.Helper()
	c, err := f.svc.Start(context.Background(), f.doctor.ID, &model.StartConsultationRequest{AppointmentID: f.appt.ID, Type: typ})
	require.NoError(t, err)
	return c
}

func TestStart_IsIdempotentPerAppointment(t *testing.T) {
	f := newFixture(t)

	first := f.start(t, "")
	assert.Equal(t, model.ConsultationTypeVideo, first.ConsultationType)
	assert.Equal(t, f.appt.PatientID, first.PatientID)

	second := f.start(t, model.ConsultationTypeAudio)
	assert.Equal(t, first.ID, second.ID)
}

func TestStart_RequiresScheduledAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.doctor.ID, &model.StartConsultationRequest{AppointmentID: uuid.New()})
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, f.store.Appointments().UpdateStatus(ctx, f.doctor.ID, f.appt.ID,
		model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, nil))

	_, err = f.svc.Start(ctx, f.doctor.ID, &model.StartConsultationRequest{AppointmentID: f.appt.ID})
	assert.True(t, apperrors.IsConflict(err))
}

func TestEnd_SavesNotesAndCompletesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.start(t, "")

	diagnosis := "Paludisme simple"
	ended, err := f.svc.End(ctx, f.doctor.ID, c.ID, &model.SaveConsultationNotesRequest{Diagnosis: &diagnosis})
	require.NoError(t, err)
	require.NotNil(t, ended.Diagnosis)
	assert.Equal(t, diagnosis, *ended.Diagnosis)

	appt, err := f.store.Appointments().Get(ctx, f.doctor.ID, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, appt.Status)

	_, err = f.svc.End(ctx, f.doctor.ID, c.ID, nil)
	assert.NoError(t, err)
}

func TestVideoRoom_CreatedOnceAndStored(t *testing.T) {
	f := newFixture(t)
	c := f.start(t, "")

	f.rooms.On("CreateRoom", mock.Anything, c.ID.String()).
		Return("https://famalink.daily.co/famalink-consultation-"+c.ID.String(), nil).Once()

	var wg sync.WaitGroup
	urls := make([]string, 4)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url, err := f.svc.VideoRoom(context.Background(), f.doctor.ID, c.ID)
			assert.NoError(t, err)
			urls[i] = url
		}(i)
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}
	f.rooms.AssertNumberOfCalls(t, "CreateRoom", 1)
}

func TestVideoRoom_ProviderErrorIsUnavailable(t *testing.T) {
	f := newFixture(t)
	c := f.start(t, "")

	f.rooms.On("CreateRoom", mock.Anything, mock.Anything).
		Return("", &video.APIError{StatusCode: 401, Message: "authorization-error"})

	_, err := f.svc.VideoRoom(context.Background(), f.doctor.ID, c.ID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnavailable, appErr.Code)
	assert.Equal(t, "Daily API error: authorization-error", appErr.Message)
}

func TestChatSession_OnlyForChatConsultations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.start(t, model.ConsultationTypeChat)

	f.chat.On("OpenSession", mock.Anything, "consultation-"+c.ID.String(),
		chat.Member{ID: f.doctor.ID.String(), Name: "Dr. Fatou Diallo", Role: "doctor"}, mock.Anything).
		Return(&chat.Session{ChannelType: chat.ChannelType, ChannelID: "consultation-" + c.ID.String(), UserID: f.doctor.ID.String(), Token: "tok"}, nil)

	session, err := f.svc.ChatSession(ctx, f.doctor.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, chat.ChannelType, session.ChannelType)
}

func TestChatSession_RejectsVideoConsultation(t *testing.T) {
	f := newFixture(t)
	c := f.start(t, model.ConsultationTypeVideo)

	_, err := f.svc.ChatSession(context.Background(), f.doctor.ID, c.ID)
	assert.True(t, apperrors.IsBadRequest(err))
	f.chat.AssertNotCalled(t, "OpenSession")
}

func TestPrescription_RendersPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.start(t, "")

	rx := "Artéméther 80mg, 2 fois par jour"
	_, err := f.svc.SaveNotes(ctx, f.doctor.ID, c.ID, &model.SaveConsultationNotesRequest{Prescription: &rx})
	require.NoError(t, err)

	doc, err := f.svc.Prescription(ctx, f.doctor.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	_, err = f.svc.Prescription(ctx, uuid.New(), c.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
