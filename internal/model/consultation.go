package model

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationType string

const (
	ConsultationTypeVideo ConsultationType = "video"
	ConsultationTypeAudio ConsultationType = "audio"
	ConsultationTypeChat  ConsultationType = "chat"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationTypeVideo, ConsultationTypeAudio, ConsultationTypeChat:
		return true
	}
	return false
}

type Consultation struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	AppointmentID    *uuid.UUID       `db:"appointment_id" json:"appointment_id,omitempty"`
	DoctorID         uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	PatientID        uuid.UUID        `db:"patient_id" json:"patient_id"`
	ConsultationDate time.Time        `db:"consultation_date" json:"consultation_date"`
	Symptoms         *string          `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis        *string          `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription     *string          `db:"prescription" json:"prescription,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	Duration         *int             `db:"duration" json:"duration,omitempty"`
	ConsultationType ConsultationType `db:"consultation_type" json:"consultation_type"`
	VideoRoomURL     *string          `db:"video_room_url" json:"video_room_url,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

type ConsultationWithPatient struct {
	Consultation
	Patient PatientSummary `db:"patient" json:"patient"`
}

type StartConsultationRequest struct {
	AppointmentID uuid.UUID        `json:"appointment_id" binding:"required"`
	Type          ConsultationType `json:"consultation_type" binding:"omitempty,oneof=video audio chat"`
}

type SaveConsultationNotesRequest struct {
	Symptoms     *string `json:"symptoms" binding:"omitempty,max=5000"`
	Diagnosis    *string `json:"diagnosis" binding:"omitempty,max=5000"`
	Prescription *string `json:"prescription" binding:"omitempty,max=5000"`
	Notes        *string `json:"notes" binding:"omitempty,max=10000"`
}

type CreateVideoRoomRequest struct {
	ConsultationID uuid.UUID `json:"consultationId" binding:"required"`
}

type VideoRoomResponse struct {
	RoomURL string `json:"roomUrl"`
}

type ChatSession struct {
	ChannelType string    `json:"channel_type"`
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
