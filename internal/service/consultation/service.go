// Package consultation runs the clinical side of an appointment: notes, the
// video room, the chat channel and the prescription document.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/internal/service/appointment"
	"github.com/famalink/telemed-api/internal/service/audit"
	"github.com/famalink/telemed-api/pkg/chat"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/format"
	"github.com/famalink/telemed-api/pkg/lock"
	"github.com/famalink/telemed-api/pkg/metrics"
	"github.com/famalink/telemed-api/pkg/pdf"
	"github.com/famalink/telemed-api/pkg/video"
)

const entityType = "consultation"

type Service interface {
	Start(ctx context.Context, doctorID uuid.UUID, req *model.StartConsultationRequest) (*model.Consultation, error)
	Get(ctx context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error)
	List(ctx context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error)
	SaveNotes(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error)
	End(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error)
	VideoRoom(ctx context.Context, doctorID, id uuid.UUID) (string, error)
	ChatSession(ctx context.Context, doctorID, id uuid.UUID) (*model.ChatSession, error)
	Prescription(ctx context.Context, doctorID, id uuid.UUID) ([]byte, error)
}

type Dependencies struct {
	Consultations repository.ConsultationRepository
	Patients      repository.PatientRepository
	Doctors       repository.DoctorRepository
	Appointments  appointment.Service
	Video         video.RoomCreator
	Chat          chat.Provider
	Locker        lock.Locker
	Auditor       *audit.Service
	Metrics       *metrics.Metrics
	Location      *time.Location
}

type service struct {
	Dependencies
	now func() time.Time
}

func NewService(deps Dependencies) Service {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &service{Dependencies: deps, now: time.Now}
}

func notFoundOr(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.NewInternal(err)
}

// Start opens the consultation of a scheduled appointment. Starting it twice
// returns the consultation created the first time.
func (s *service) Start(ctx context.Context, doctorID uuid.UUID, req *model.StartConsultationRequest) (*model.Consultation, error) {
	appt, err := s.Appointments.Get(ctx, doctorID, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.Consultations.GetByAppointment(ctx, doctorID, appt.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternal(err)
	}

	if appt.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("appointment is %s, only scheduled appointments can be started", appt.Status), nil, nil)
	}

	consultType := req.Type
	if consultType == "" {
		consultType = model.ConsultationTypeVideo
	}
	if !consultType.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown consultation type %q", consultType), nil)
	}

	apptID := appt.ID
	c := &model.Consultation{
		ID:               uuid.New(),
		AppointmentID:    &apptID,
		DoctorID:         doctorID,
		PatientID:        appt.PatientID,
		ConsultationDate: s.now().UTC(),
		ConsultationType: consultType,
	}
	if err := s.Consultations.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			existing, getErr := s.Consultations.GetByAppointment(ctx, doctorID, appt.ID)
			if getErr != nil {
				return nil, apperrors.NewInternal(getErr)
			}
			return existing, nil
		}
		return nil, apperrors.NewInternal(err)
	}

	s.Auditor.Log(ctx, doctorID, audit.ActionCreate, entityType, c.ID, nil)
	return c, nil
}

func (s *service) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error) {
	c, err := s.Consultations.Get(ctx, doctorID, id)
	if err != nil {
		return nil, notFoundOr(entityType, err)
	}
	s.Auditor.Log(ctx, doctorID, audit.ActionRead, entityType, id, nil)
	return c, nil
}

func (s *service) List(ctx context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error) {
	list, err := s.Consultations.List(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if list == nil {
		list = []*model.ConsultationWithPatient{}
	}
	return list, nil
}

func (s *service) SaveNotes(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error) {
	c, err := s.Consultations.SaveNotes(ctx, doctorID, id, notes)
	if err != nil {
		return nil, notFoundOr(entityType, err)
	}
	s.Auditor.Log(ctx, doctorID, audit.ActionUpdate, entityType, id, nil)
	return c, nil
}

// End saves the final notes and completes the linked appointment.
func (s *service) End(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error) {
	if notes == nil {
		notes = &model.SaveConsultationNotesRequest{}
	}
	c, err := s.SaveNotes(ctx, doctorID, id, notes)
	if err != nil {
		return nil, err
	}
	if c.AppointmentID == nil {
		return c, nil
	}

	appt, err := s.Appointments.Get(ctx, doctorID, *c.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentStatusScheduled {
		if _, err := s.Appointments.UpdateStatus(ctx, doctorID, appt.ID, model.AppointmentStatusCompleted); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// VideoRoom returns the consultation's room URL, creating the room on first
// use. Concurrent first calls create a single room.
func (s *service) VideoRoom(ctx context.Context, doctorID, id uuid.UUID) (string, error) {
	unlock, err := s.Locker.Lock(ctx, "consultations:video:"+id.String())
	if err != nil {
		return "", apperrors.NewUnavailable("video room", err)
	}
	defer unlock()

	c, err := s.Consultations.Get(ctx, doctorID, id)
	if err != nil {
		return "", notFoundOr(entityType, err)
	}
	if c.VideoRoomURL != nil && *c.VideoRoomURL != "" {
		return *c.VideoRoomURL, nil
	}

	started := time.Now()
	roomURL, err := s.Video.CreateRoom(ctx, id.String())
	s.Metrics.ObserveExternal("daily", time.Since(started).Seconds(), err)
	if err != nil {
		log.Error().Err(err).Str("consultation_id", id.String()).Msg("Failed to create video room")
		var apiErr *video.APIError
		if errors.As(err, &apiErr) {
			return "", &apperrors.AppError{Code: apperrors.ErrUnavailable, Message: apiErr.Error(), Err: err}
		}
		return "", apperrors.NewUnavailable("video provider", err)
	}

	if err := s.Consultations.SetVideoRoomURL(ctx, doctorID, id, roomURL); err != nil {
		return "", apperrors.NewInternal(err)
	}
	return roomURL, nil
}

func (s *service) ChatSession(ctx context.Context, doctorID, id uuid.UUID) (*model.ChatSession, error) {
	c, err := s.Consultations.Get(ctx, doctorID, id)
	if err != nil {
		return nil, notFoundOr(entityType, err)
	}
	if c.ConsultationType != model.ConsultationTypeChat {
		return nil, apperrors.NewBadRequest("chat is only available for chat consultations", nil)
	}
	doctor, err := s.Doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, notFoundOr("doctor", err)
	}

	started := time.Now()
	session, err := s.Chat.OpenSession(ctx, "consultation-"+id.String(),
		chat.Member{ID: doctorID.String(), Name: doctor.DisplayName(), Role: "doctor"},
		chat.Member{ID: c.PatientID.String(), Name: c.Patient.FullName(), Role: "patient"},
	)
	s.Metrics.ObserveExternal("stream", time.Since(started).Seconds(), err)
	if err != nil {
		return nil, apperrors.NewUnavailable("chat provider", err)
	}

	return &model.ChatSession{
		ChannelType: session.ChannelType,
		ChannelID:   session.ChannelID,
		UserID:      session.UserID,
		Token:       session.Token,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func (s *service) Prescription(ctx context.Context, doctorID, id uuid.UUID) ([]byte, error) {
	c, err := s.Consultations.Get(ctx, doctorID, id)
	if err != nil {
		return nil, notFoundOr(entityType, err)
	}
	doctor, err := s.Doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, notFoundOr("doctor", err)
	}
	patient, err := s.Patients.Get(ctx, doctorID, c.PatientID)
	if err != nil {
		return nil, notFoundOr("patient", err)
	}

	doc := pdf.Prescription{
		DoctorName:  doctor.DisplayName(),
		Speciality:  doctor.Speciality,
		DoctorPhone: format.Phone(doctor.Phone),
		PatientName: patient.FirstName + " " + patient.LastName,
		Date:        format.Date(c.ConsultationDate.In(s.Location)),
		Reference:   c.ID.String()[:8],
	}
	if age := patient.Age(s.now()); age != nil {
		doc.PatientAge = fmt.Sprintf("%d ans", *age)
	}
	if c.Diagnosis != nil {
		doc.Diagnosis = *c.Diagnosis
	}
	if c.Prescription != nil {
		doc.Prescription = *c.Prescription
	}

	out, err := pdf.RenderPrescription(doc)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	s.Auditor.Log(ctx, doctorID, audit.ActionExport, entityType, id, nil)
	return out, nil
}
