package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no-show"
)

var ErrIllegalTransition = errors.New("illegal appointment status transition")

// appointmentTransitions lists the statuses reachable from each status.
// Statuses absent from the map are terminal.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return status, nil
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo returns next if the move is legal, ErrIllegalTransition otherwise.
func (s AppointmentStatus) TransitionTo(next AppointmentStatus) (AppointmentStatus, error) {
	if !next.Valid() {
		return s, fmt.Errorf("unknown appointment status %q", next)
	}
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
	}
	return next, nil
}

type AppointmentType string

const (
	AppointmentTypeTeleconsultation AppointmentType = "teleconsultation"
	AppointmentTypeInPerson         AppointmentType = "in-person"
)

func (t AppointmentType) Valid() bool {
	return t == AppointmentTypeTeleconsultation || t == AppointmentTypeInPerson
}

const (
	DefaultAppointmentDuration = 30
	DefaultAppointmentType     = AppointmentTypeTeleconsultation
)

type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	Duration        int               `db:"duration" json:"duration"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Type            AppointmentType   `db:"type" json:"type"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// End is the exclusive end of the appointment's [start, end) interval.
func (a *Appointment) End() time.Time {
	return a.AppointmentDate.Add(time.Duration(a.Duration) * time.Minute)
}

func (a *Appointment) Slot() TimeSlot {
	return TimeSlot{Start: a.AppointmentDate, End: a.End()}
}

// PatientSummary is the minimal patient display data joined onto listings.
type PatientSummary struct {
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
}

func (p PatientSummary) FullName() string {
	return p.FirstName + " " + p.LastName
}

type AppointmentWithPatient struct {
	Appointment
	Patient PatientSummary `db:"patient" json:"patient"`
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID       `json:"patient_id" binding:"required"`
	AppointmentDate time.Time       `json:"appointment_date" binding:"required"`
	Duration        *int            `json:"duration" binding:"omitempty,slot_duration"`
	Type            AppointmentType `json:"type" binding:"omitempty,oneof=teleconsultation in-person"`
	Notes           *string         `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=scheduled completed cancelled no-show"`
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConflictDetails is attached to conflict errors so the caller can pick another time.
type ConflictDetails struct {
	AppointmentIDs []uuid.UUID `json:"conflicting_appointment_ids"`
	Slots          []TimeSlot  `json:"conflicting_slots"`
}
