// Package notification consumes appointment events from the broker and fans
// them out to the patient (SMS), the doctor (email) and the doctor's open
// calendars (WebSocket). Every delivery is best effort.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/email"
	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/realtime"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/pkg/format"
	"github.com/famalink/telemed-api/pkg/messaging"
	"github.com/famalink/telemed-api/pkg/metrics"
	"github.com/famalink/telemed-api/pkg/sms"
)

const handleTimeout = 30 * time.Second

type Broadcaster interface {
	Broadcast(doctorID uuid.UUID, event realtime.Event)
}

// Invalidator drops cached calendar weeks; events may come from another replica.
type Invalidator interface {
	Invalidate(doctorID uuid.UUID)
}

type Config struct {
	// Location renders appointment times in messages.
	Location *time.Location
	// Deliver sends SMS and email. Pub/sub reaches every replica, so only
	// the process running the workers delivers; the others only refresh
	// calendars.
	Deliver bool
}

type Service struct {
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	sms      sms.Sender
	email    email.Service
	hub      Broadcaster
	calendar Invalidator
	metrics  *metrics.Metrics
	location *time.Location
	deliver  bool
}

func NewService(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	smsSender sms.Sender,
	emailSvc email.Service,
	hub Broadcaster,
	calendar Invalidator,
	m *metrics.Metrics,
	config Config,
) *Service {
	location := config.Location
	if location == nil {
		location = time.UTC
	}
	return &Service{
		patients: patients,
		doctors:  doctors,
		sms:      smsSender,
		email:    emailSvc,
		hub:      hub,
		calendar: calendar,
		metrics:  m,
		location: location,
		deliver:  config.Deliver,
	}
}

// Start subscribes to channel; handling stops when ctx is done.
func (s *Service) Start(ctx context.Context, broker messaging.MessageBroker, channel string) error {
	return broker.Subscribe(ctx, channel, func(payload []byte) error {
		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		return s.Handle(hctx, payload)
	})
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Service) Handle(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	var event model.AppointmentEvent
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}

	s.calendar.Invalidate(event.DoctorID)
	s.hub.Broadcast(event.DoctorID, realtime.Event{
		Type:      env.Type,
		Timestamp: event.OccurredAt,
		Data:      env.Payload,
	})

	if !s.deliver {
		return nil
	}
	switch env.Type {
	case model.EventAppointmentCreated:
		s.notifyCreated(ctx, &event)
	case model.EventAppointmentStatusChanged:
		if event.Status == model.AppointmentStatusCancelled {
			s.notifyCancelled(ctx, &event)
		}
	default:
		log.Debug().Str("type", env.Type).Msg("Ignoring unknown event type")
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, event *model.AppointmentEvent) (*model.Doctor, *model.Patient, bool) {
	doctor, err := s.doctors.Get(ctx, event.DoctorID)
	if err != nil {
		log.Warn().Err(err).Str("doctor_id", event.DoctorID.String()).Msg("Notification skipped, doctor not found")
		return nil, nil, false
	}
	patient, err := s.patients.Get(ctx, event.DoctorID, event.PatientID)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", event.PatientID.String()).Msg("Notification skipped, patient not found")
		return nil, nil, false
	}
	return doctor, patient, true
}

func appointmentKind(t model.AppointmentType) string {
	if t == model.AppointmentTypeInPerson {
		return "au cabinet"
	}
	return "en téléconsultation"
}

func (s *Service) notifyCreated(ctx context.Context, event *model.AppointmentEvent) {
	doctor, patient, ok := s.lookup(ctx, event)
	if !ok {
		return
	}
	when := format.DateTime(event.AppointmentDate.In(s.location))

	s.sendSMS(ctx, patient.Phone, fmt.Sprintf(
		"FamaLink: votre rendez-vous avec %s est confirmé le %s (%s, %d min).",
		doctor.DisplayName(), when, appointmentKind(event.AppointmentType), event.Duration))

	body := fmt.Sprintf(
		"Nouveau rendez-vous\n\nPatient : %s %s (%s)\nDate : %s\nDurée : %d min\nType : %s\n",
		patient.FirstName, patient.LastName, format.Phone(patient.Phone), when, event.Duration, event.AppointmentType)
	started := time.Now()
	err := s.email.SendCustom(ctx, doctor.Email, "Nouveau rendez-vous le "+when, body)
	s.metrics.ObserveExternal("smtp", time.Since(started).Seconds(), err)
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", event.AppointmentID.String()).Msg("Failed to email doctor")
	}
}

func (s *Service) notifyCancelled(ctx context.Context, event *model.AppointmentEvent) {
	doctor, patient, ok := s.lookup(ctx, event)
	if !ok {
		return
	}
	s.sendSMS(ctx, patient.Phone, fmt.Sprintf(
		"FamaLink: votre rendez-vous du %s avec %s est annulé.",
		format.DateTime(event.AppointmentDate.In(s.location)), doctor.DisplayName()))
}

func (s *Service) sendSMS(ctx context.Context, phone, body string) {
	started := time.Now()
	err := s.sms.Send(ctx, format.E164(phone), body)
	s.metrics.ObserveExternal("twilio", time.Since(started).Seconds(), err)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to send SMS")
	}
}
