package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/lock"
	"github.com/famalink/telemed-api/pkg/metrics"
)

const (
	conflictSourceChecker = "checker"
	conflictSourceStorage = "storage"
)

// Invalidator drops cached views derived from a doctor's appointments.
type Invalidator interface {
	Invalidate(doctorID uuid.UUID)
}

type Config struct {
	AllowedDurations []int
	// CreateTimeout bounds lock wait plus check and insert.
	CreateTimeout time.Duration
}

type Service interface {
	Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Appointment, error)
	ListInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error)
	UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
}

type service struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	checker      *Checker
	locker       lock.Locker
	calendar     Invalidator
	metrics      *metrics.Metrics
	config       Config
}

func NewService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	locker lock.Locker,
	calendar Invalidator,
	metrics *metrics.Metrics,
	config Config,
) Service {
	if config.CreateTimeout <= 0 {
		config.CreateTimeout = 10 * time.Second
	}
	return &service{
		appointments: appointments,
		patients:     patients,
		checker:      NewChecker(appointments),
		locker:       locker,
		calendar:     calendar,
		metrics:      metrics,
		config:       config,
	}
}

func lockKey(doctorID uuid.UUID) string {
	return "appointments:doctor:" + doctorID.String()
}

func conflictError(conflicts []*model.Appointment, cause error) error {
	return apperrors.NewConflict("appointment overlaps an existing appointment", conflictDetails(conflicts), cause)
}

func (s *service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	duration := model.DefaultAppointmentDuration
	if req.Duration != nil {
		duration = *req.Duration
	}
	if err := ValidateDuration(duration, s.config.AllowedDurations); err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}
	apptType := req.Type
	if apptType == "" {
		apptType = model.DefaultAppointmentType
	}
	if !apptType.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown appointment type %q", apptType), nil)
	}
	if req.AppointmentDate.IsZero() {
		return nil, apperrors.NewBadRequest("appointment_date is required", nil)
	}

	if _, err := s.patients.Get(ctx, doctorID, req.PatientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("patient", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.CreateTimeout)
	defer cancel()

	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, lockKey(doctorID))
	s.metrics.LockWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return nil, apperrors.NewUnavailable("appointment scheduling", err)
	}
	defer unlock()

	appt := &model.Appointment{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		PatientID:       req.PatientID,
		AppointmentDate: req.AppointmentDate.UTC(),
		Duration:        duration,
		Status:          model.AppointmentStatusScheduled,
		Type:            apptType,
		Notes:           req.Notes,
	}

	conflicts, err := s.checker.Check(ctx, doctorID, appt.AppointmentDate, appt.Duration)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if len(conflicts) > 0 {
		s.metrics.AppointmentConflicts.WithLabelValues(conflictSourceChecker).Inc()
		return nil, conflictError(conflicts, nil)
	}

	event, err := model.NewAppointmentEvent(model.EventAppointmentCreated, appt, "")
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	if err := s.appointments.Create(ctx, appt, event); err != nil {
		switch {
		case errors.Is(err, repository.ErrOverlap):
			// Another replica won the race past the lock.
			s.metrics.AppointmentConflicts.WithLabelValues(conflictSourceStorage).Inc()
			conflicts, checkErr := s.checker.Check(ctx, doctorID, appt.AppointmentDate, appt.Duration)
			if checkErr != nil {
				log.Warn().Err(checkErr).Str("doctor_id", doctorID.String()).Msg("Failed to list conflicting appointments")
			}
			return nil, conflictError(conflicts, err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("patient", err)
		default:
			return nil, apperrors.NewInternal(err)
		}
	}

	s.metrics.AppointmentsCreated.Inc()
	s.calendar.Invalidate(doctorID)

	log.Info().
		Str("doctor_id", doctorID.String()).
		Str("appointment_id", appt.ID.String()).
		Time("start", appt.AppointmentDate).
		Int("duration", appt.Duration).
		Msg("Appointment created")
	return appt, nil
}

func (s *service) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, doctorID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, apperrors.NewInternal(err)
	}
	return appt, nil
}

func (s *service) ListInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error) {
	if end.Before(start) {
		return nil, apperrors.NewBadRequest("end must not be before start", nil)
	}
	appts, err := s.appointments.ListForDoctorInRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return appts, nil
}

func (s *service) UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	appt, err := s.Get(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}

	previous := appt.Status
	next, err := previous.TransitionTo(status)
	if err != nil {
		if errors.Is(err, model.ErrIllegalTransition) {
			return nil, apperrors.NewConflict(err.Error(), map[string]model.AppointmentStatus{"current_status": previous}, err)
		}
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}

	appt.Status = next
	event, err := model.NewAppointmentEvent(model.EventAppointmentStatusChanged, appt, previous)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	if err := s.appointments.UpdateStatus(ctx, doctorID, id, previous, next, event); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, apperrors.NewConflict("appointment status changed concurrently, reload and retry", nil, err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("appointment", err)
		default:
			return nil, apperrors.NewInternal(err)
		}
	}

	s.metrics.StatusTransitions.WithLabelValues(string(previous), string(next)).Inc()
	s.calendar.Invalidate(doctorID)
	return appt, nil
}
