package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/format"
)

// TodayLister returns the doctor's appointments of the current local day.
type TodayLister interface {
	Today(ctx context.Context, doctorID uuid.UUID) ([]*model.AppointmentWithPatient, error)
}

type Service interface {
	GetProfile(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error)
	UpdateProfile(ctx context.Context, doctorID uuid.UUID, req *model.UpdateProfileRequest) (*model.Doctor, error)
	GetSettings(ctx context.Context, doctorID uuid.UUID) (*model.DoctorSettings, error)
	UpdateSettings(ctx context.Context, doctorID uuid.UUID, req *model.UpdateSettingsRequest) (*model.DoctorSettings, error)
	Dashboard(ctx context.Context, doctorID uuid.UUID) (*model.DashboardStats, error)
}

type service struct {
	doctors      repository.DoctorRepository
	authUsers    repository.AuthUserRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	today        TodayLister
}

func NewService(
	doctors repository.DoctorRepository,
	authUsers repository.AuthUserRepository,
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	today TodayLister,
) Service {
	return &service{
		doctors:      doctors,
		authUsers:    authUsers,
		patients:     patients,
		appointments: appointments,
		today:        today,
	}
}

func (s *service) GetProfile(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	d, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, apperrors.NewInternal(err)
	}
	return d, nil
}

// UpdateProfile applies the provided fields. An email change is made on the
// identity first and rolled back if the profile write fails.
func (s *service) UpdateProfile(ctx context.Context, doctorID uuid.UUID, req *model.UpdateProfileRequest) (*model.Doctor, error) {
	d, err := s.GetProfile(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	previousEmail := d.Email

	if req.FirstName != nil {
		d.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		d.LastName = strings.TrimSpace(*req.LastName)
	}
	if d.FirstName == "" || d.LastName == "" {
		return nil, apperrors.NewBadRequest("first and last name are required", nil)
	}
	if req.Phone != nil {
		if !format.IsValidIvorianPhone(*req.Phone) {
			return nil, apperrors.NewBadRequest("phone must be an Ivorian number (+225 or 0 followed by 8 to 10 digits)", nil)
		}
		d.Phone = format.StripSpaces(*req.Phone)
	}
	if req.Speciality != nil {
		d.Speciality = strings.TrimSpace(*req.Speciality)
	}

	emailChanged := false
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != previousEmail {
			if err := s.authUsers.UpdateEmail(ctx, doctorID, email); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return nil, apperrors.NewConflict("email is already registered", nil, err)
				}
				return nil, apperrors.NewInternal(err)
			}
			d.Email = email
			emailChanged = true
		}
	}

	if err := s.doctors.Update(ctx, d); err != nil {
		if emailChanged {
			if rbErr := s.authUsers.UpdateEmail(ctx, doctorID, previousEmail); rbErr != nil {
				log.Error().Err(rbErr).Str("doctor_id", doctorID.String()).Msg("Failed to restore identity email")
			}
		}
		return nil, apperrors.NewInternal(err)
	}
	return d, nil
}

// GetSettings falls back to the defaults until the doctor saves settings.
func (s *service) GetSettings(ctx context.Context, doctorID uuid.UUID) (*model.DoctorSettings, error) {
	st, err := s.doctors.GetSettings(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.DefaultDoctorSettings(doctorID), nil
		}
		return nil, apperrors.NewInternal(err)
	}
	return st, nil
}

func (s *service) UpdateSettings(ctx context.Context, doctorID uuid.UUID, req *model.UpdateSettingsRequest) (*model.DoctorSettings, error) {
	st, err := s.GetSettings(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if req.DefaultDuration != nil {
		if *req.DefaultDuration <= 0 {
			return nil, apperrors.NewBadRequest("default_duration must be positive", nil)
		}
		st.DefaultDuration = *req.DefaultDuration
	}
	if req.BufferMinutes != nil {
		if *req.BufferMinutes < 0 {
			return nil, apperrors.NewBadRequest("buffer_minutes must not be negative", nil)
		}
		st.BufferMinutes = *req.BufferMinutes
	}
	if req.ConsultationPrice != nil {
		if *req.ConsultationPrice < 0 {
			return nil, apperrors.NewBadRequest("consultation_price must not be negative", nil)
		}
		st.ConsultationPrice = *req.ConsultationPrice
	}

	if err := s.doctors.UpsertSettings(ctx, st); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return st, nil
}

func (s *service) Dashboard(ctx context.Context, doctorID uuid.UUID) (*model.DashboardStats, error) {
	today, err := s.today.Today(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if today == nil {
		today = []*model.AppointmentWithPatient{}
	}
	patients, err := s.patients.Count(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	counts, err := s.appointments.CountByStatus(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &model.DashboardStats{
		TodayAppointments:     today,
		TotalPatients:         patients,
		TotalAppointments:     total,
		CompletedAppointments: counts[model.AppointmentStatusCompleted],
		UpcomingAppointments:  counts[model.AppointmentStatusScheduled],
	}, nil
}
