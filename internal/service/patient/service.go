package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/internal/service/audit"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/format"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200

	entityType = "patient"
)

// Invalidator drops cached calendar weeks; patient deletion removes appointments.
type Invalidator interface {
	Invalidate(doctorID uuid.UUID)
}

type PatientService interface {
	CreatePatient(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, doctorID, id uuid.UUID) (*model.PatientDetail, error)
	UpdatePatient(ctx context.Context, doctorID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, doctorID, id uuid.UUID) error
	ListPatients(ctx context.Context, doctorID uuid.UUID, filter model.PatientFilter) ([]*model.PatientListItem, int, error)
}

type Service struct {
	repo            repository.PatientRepository
	appointmentRepo repository.AppointmentRepository
	consultRepo     repository.ConsultationRepository
	calendar        Invalidator
	auditor         *audit.Service
	now             func() time.Time
}

func NewService(
	repo repository.PatientRepository,
	appointmentRepo repository.AppointmentRepository,
	consultRepo repository.ConsultationRepository,
	calendar Invalidator,
	auditor *audit.Service,
) *Service {
	return &Service{
		repo:            repo,
		appointmentRepo: appointmentRepo,
		consultRepo:     consultRepo,
		calendar:        calendar,
		auditor:         auditor,
		now:             time.Now,
	}
}

func validatePhone(phone string) error {
	if !format.IsValidIvorianPhone(phone) {
		return apperrors.NewBadRequest("phone must be an Ivorian number (+225 or 0 followed by 8 to 10 digits)", nil)
	}
	return nil
}

func validateGender(g *model.Gender) error {
	if g == nil {
		return nil
	}
	switch *g {
	case model.GenderMale, model.GenderFemale, model.GenderOther:
		return nil
	}
	return apperrors.NewBadRequest("gender must be one of M, F, Autre", nil)
}

func notFoundOr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(entityType, err)
	}
	return apperrors.NewInternal(err)
}

func (s *Service) CreatePatient(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, apperrors.NewBadRequest("first and last name are required", nil)
	}
	if err := validatePhone(req.Phone); err != nil {
		return nil, err
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}

	patient := &model.Patient{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		FirstName:   firstName,
		LastName:    lastName,
		Phone:       format.StripSpaces(req.Phone),
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Address:     req.Address,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.auditor.Log(ctx, doctorID, audit.ActionCreate, entityType, patient.ID, nil)
	return patient, nil
}

// GetPatient returns the patient with age and history, newest first.
func (s *Service) GetPatient(ctx context.Context, doctorID, id uuid.UUID) (*model.PatientDetail, error) {
	patient, err := s.repo.Get(ctx, doctorID, id)
	if err != nil {
		return nil, notFoundOr(err)
	}

	consultations, err := s.consultRepo.ListForPatient(ctx, doctorID, id)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	appointments, err := s.appointmentRepo.ListForPatient(ctx, doctorID, id)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if consultations == nil {
		consultations = []*model.Consultation{}
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}

	s.auditor.Log(ctx, doctorID, audit.ActionRead, entityType, id, nil)
	return &model.PatientDetail{
		Patient:       patient,
		Age:           patient.Age(s.now()),
		Consultations: consultations,
		Appointments:  appointments,
	}, nil
}

func (s *Service) UpdatePatient(ctx context.Context, doctorID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, doctorID, id)
	if err != nil {
		return nil, notFoundOr(err)
	}

	if req.FirstName != nil {
		patient.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		patient.LastName = strings.TrimSpace(*req.LastName)
	}
	if patient.FirstName == "" || patient.LastName == "" {
		return nil, apperrors.NewBadRequest("first and last name are required", nil)
	}
	if req.Phone != nil {
		if err := validatePhone(*req.Phone); err != nil {
			return nil, err
		}
		patient.Phone = format.StripSpaces(*req.Phone)
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		if err := validateGender(req.Gender); err != nil {
			return nil, err
		}
		patient.Gender = req.Gender
	}
	if req.Address != nil {
		patient.Address = req.Address
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, notFoundOr(err)
	}

	s.auditor.Log(ctx, doctorID, audit.ActionUpdate, entityType, id, &audit.LogOptions{Changes: req})
	return patient, nil
}

// DeletePatient refuses while the patient has scheduled appointments and
// otherwise removes the patient together with their history.
func (s *Service) DeletePatient(ctx context.Context, doctorID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, doctorID, id); err != nil {
		if errors.Is(err, repository.ErrPatientHasScheduled) {
			return apperrors.NewConflict("patient has scheduled appointments; cancel them before deleting", nil, err)
		}
		return notFoundOr(err)
	}

	s.calendar.Invalidate(doctorID)
	s.auditor.Log(ctx, doctorID, audit.ActionDelete, entityType, id, &audit.LogOptions{
		Metadata: map[string]interface{}{"cascade": true},
	})
	return nil
}

func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID, filter model.PatientFilter) ([]*model.PatientListItem, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)

	items, err := s.repo.List(ctx, doctorID, filter)
	if err != nil {
		return nil, 0, apperrors.NewInternal(err)
	}
	total, err := s.repo.Count(ctx, doctorID)
	if err != nil {
		return nil, 0, apperrors.NewInternal(err)
	}
	if items == nil {
		items = []*model.PatientListItem{}
	}
	return items, total, nil
}
