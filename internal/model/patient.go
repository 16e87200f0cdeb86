package model

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "Autre"
)

type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	Phone       string     `db:"phone" json:"phone"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *Gender    `db:"gender" json:"gender,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (p *Patient) Summary() PatientSummary {
	return PatientSummary{FirstName: p.FirstName, LastName: p.LastName, Phone: p.Phone}
}

// Age in whole years at now, nil without a date of birth.
func (p *Patient) Age(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return &age
}

// PatientListItem is a patient row with the counters shown on the patients page.
type PatientListItem struct {
	Patient
	ConsultationCount int        `db:"consultation_count" json:"consultation_count"`
	LastAppointment   *time.Time `db:"last_appointment" json:"last_appointment,omitempty"`
}

type PatientDetail struct {
	Patient       *Patient        `json:"patient"`
	Age           *int            `json:"age,omitempty"`
	Consultations []*Consultation `json:"consultations"`
	Appointments  []*Appointment  `json:"appointments"`
}

type PatientFilter struct {
	Search string
	Limit  int
	Offset int
}

type CreatePatientRequest struct {
	FirstName   string     `json:"first_name" binding:"required,max=100"`
	LastName    string     `json:"last_name" binding:"required,max=100"`
	Phone       string     `json:"phone" binding:"required,ci_phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *Gender    `json:"gender" binding:"omitempty,oneof=M F Autre"`
	Address     *string    `json:"address" binding:"omitempty,max=500"`
}

type UpdatePatientRequest struct {
	FirstName   *string    `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string    `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone       *string    `json:"phone" binding:"omitempty,ci_phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *Gender    `json:"gender" binding:"omitempty,oneof=M F Autre"`
	Address     *string    `json:"address" binding:"omitempty,max=500"`
}
