package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
)

// AppointmentEvent is the payload of appointment outbox events.
type AppointmentEvent struct {
	Type            string            `json:"type"`
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	DoctorID        uuid.UUID         `json:"doctor_id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	Duration        int               `json:"duration"`
	Status          AppointmentStatus `json:"status"`
	PreviousStatus  AppointmentStatus `json:"previous_status,omitempty"`
	AppointmentType AppointmentType   `json:"appointment_type"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

func NewAppointmentEvent(eventType string, a *Appointment, previous AppointmentStatus) (*OutboxEvent, error) {
	payload, err := json.Marshal(AppointmentEvent{
		Type:            eventType,
		AppointmentID:   a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		AppointmentDate: a.AppointmentDate,
		Duration:        a.Duration,
		Status:          a.Status,
		PreviousStatus:  previous,
		AppointmentType: a.Type,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: a.ID,
		Payload:     payload,
		Status:      OutboxStatusPending,
	}, nil
}
