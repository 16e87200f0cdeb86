// Package encrypted seals clinical free text before it reaches storage.
package encrypted

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/pkg/security"
)

// ConsultationRepository encrypts symptoms, diagnosis, prescription and notes
// on write and decrypts them on read. Other columns pass through untouched.
type ConsultationRepository struct {
	next repository.ConsultationRepository
	enc  security.Encryptor
}

var _ repository.ConsultationRepository = (*ConsultationRepository)(nil)

func NewConsultationRepository(next repository.ConsultationRepository, enc security.Encryptor) *ConsultationRepository {
	return &ConsultationRepository{next: next, enc: enc}
}

func (r *ConsultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	sealed := *consultation
	if err := r.sealFields(&sealed.Symptoms, &sealed.Diagnosis, &sealed.Prescription, &sealed.Notes); err != nil {
		return err
	}
	if err := r.next.Create(ctx, &sealed); err != nil {
		return err
	}
	consultation.ID = sealed.ID
	consultation.CreatedAt = sealed.CreatedAt
	consultation.UpdatedAt = sealed.UpdatedAt
	return nil
}

func (r *ConsultationRepository) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error) {
	c, err := r.next.Get(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	if err := r.open(&c.Consultation); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConsultationRepository) GetByAppointment(ctx context.Context, doctorID, appointmentID uuid.UUID) (*model.Consultation, error) {
	c, err := r.next.GetByAppointment(ctx, doctorID, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := r.open(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConsultationRepository) List(ctx context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error) {
	items, err := r.next.List(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		if err := r.open(&c.Consultation); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *ConsultationRepository) ListForPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Consultation, error) {
	items, err := r.next.ListForPatient(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		if err := r.open(c); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *ConsultationRepository) SaveNotes(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error) {
	sealed := *notes
	if err := r.sealFields(&sealed.Symptoms, &sealed.Diagnosis, &sealed.Prescription, &sealed.Notes); err != nil {
		return nil, err
	}
	c, err := r.next.SaveNotes(ctx, doctorID, id, &sealed)
	if err != nil {
		return nil, err
	}
	if err := r.open(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConsultationRepository) SetVideoRoomURL(ctx context.Context, doctorID, id uuid.UUID, url string) error {
	return r.next.SetVideoRoomURL(ctx, doctorID, id, url)
}

// sealFields replaces each non-nil string with a fresh pointer to its sealed form.
func (r *ConsultationRepository) sealFields(fields ...**string) error {
	for _, f := range fields {
		if *f == nil {
			continue
		}
		sealed, err := security.SealString(r.enc, **f)
		if err != nil {
			return fmt.Errorf("failed to seal consultation field: %w", err)
		}
		*f = &sealed
	}
	return nil
}

func (r *ConsultationRepository) open(c *model.Consultation) error {
	for _, f := range []**string{&c.Symptoms, &c.Diagnosis, &c.Prescription, &c.Notes} {
		if *f == nil {
			continue
		}
		plain, err := security.OpenString(r.enc, **f)
		if err != nil {
			return fmt.Errorf("failed to open consultation %s: %w", c.ID, err)
		}
		*f = &plain
	}
	return nil
}
