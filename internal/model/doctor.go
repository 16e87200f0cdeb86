package model

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Phone      string    `db:"phone" json:"phone"`
	Speciality string    `db:"speciality" json:"speciality"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (d *Doctor) DisplayName() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

const (
	DefaultBufferMinutes     = 5
	DefaultConsultationPrice = 10000
	DefaultCurrency          = "XOF"
)

type DoctorSettings struct {
	DoctorID          uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DefaultDuration   int       `db:"default_duration" json:"default_duration"`
	BufferMinutes     int       `db:"buffer_minutes" json:"buffer_minutes"`
	ConsultationPrice int       `db:"consultation_price" json:"consultation_price"`
	Currency          string    `db:"currency" json:"currency"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func DefaultDoctorSettings(doctorID uuid.UUID) *DoctorSettings {
	return &DoctorSettings{
		DoctorID:          doctorID,
		DefaultDuration:   DefaultAppointmentDuration,
		BufferMinutes:     DefaultBufferMinutes,
		ConsultationPrice: DefaultConsultationPrice,
		Currency:          DefaultCurrency,
	}
}

type UpdateProfileRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Phone      *string `json:"phone" binding:"omitempty,ci_phone"`
	Speciality *string `json:"speciality" binding:"omitempty,max=100"`
}

type UpdateSettingsRequest struct {
	DefaultDuration   *int `json:"default_duration" binding:"omitempty,slot_duration"`
	BufferMinutes     *int `json:"buffer_minutes" binding:"omitempty,min=0,max=60"`
	ConsultationPrice *int `json:"consultation_price" binding:"omitempty,min=0"`
}

type DashboardStats struct {
	TodayAppointments     []*AppointmentWithPatient `json:"today_appointments"`
	TotalPatients         int                       `json:"total_patients"`
	TotalAppointments     int                       `json:"total_appointments"`
	CompletedAppointments int                       `json:"completed_appointments"`
	UpcomingAppointments  int                       `json:"upcoming_appointments"`
}
