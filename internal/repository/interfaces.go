package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is returned when the storage exclusion constraint rejects a
	// scheduled appointment overlapping another one of the same doctor.
	ErrOverlap   = errors.New("appointment overlaps an existing scheduled appointment")
	ErrDuplicate = errors.New("duplicate record")
	// ErrStatusChanged is returned when a status compare-and-set lost a race.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
	// ErrPatientHasScheduled blocks deletion of a patient with upcoming appointments.
	ErrPatientHasScheduled = errors.New("patient has scheduled appointments")
)

// Every doctor-owned read and write takes the doctor ID and filters on it.
type (
	AuthUserRepository interface {
		Create(ctx context.Context, user *model.AuthUser) error
		GetByEmail(ctx context.Context, email string) (*model.AuthUser, error)
		UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		GetSettings(ctx context.Context, doctorID uuid.UUID) (*model.DoctorSettings, error)
		UpsertSettings(ctx context.Context, settings *model.DoctorSettings) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, doctorID uuid.UUID, filter model.PatientFilter) ([]*model.PatientListItem, error)
		Count(ctx context.Context, doctorID uuid.UUID) (int, error)
		// Delete removes the patient with their appointments and consultations,
		// or fails with ErrPatientHasScheduled leaving everything in place.
		Delete(ctx context.Context, doctorID, id uuid.UUID) error
	}

	AppointmentRepository interface {
		// Create persists the appointment and its outbox event atomically.
		Create(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error
		Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Appointment, error)
		// ListForDoctorInRange returns appointments starting in [start, end], by start ascending.
		ListForDoctorInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error)
		// ListScheduledOverlapping returns scheduled appointments intersecting [start, end).
		ListScheduledOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error)
		ListForPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Appointment, error)
		UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, from, to model.AppointmentStatus, event *model.OutboxEvent) error
		CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[model.AppointmentStatus]int, error)
	}

	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		Get(ctx context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error)
		GetByAppointment(ctx context.Context, doctorID, appointmentID uuid.UUID) (*model.Consultation, error)
		List(ctx context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error)
		ListForPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Consultation, error)
		SaveNotes(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error)
		SetVideoRoomURL(ctx context.Context, doctorID, id uuid.UUID, url string) error
	}

	OutboxRepository interface {
		// ClaimPending leases up to limit pending events; rows locked by another
		// processor are skipped.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records the error; the event stays pending unless final.
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, final bool) error
		CountPending(ctx context.Context) (int, error)
		// DeleteProcessedBefore purges delivered events older than cutoff.
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
