package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(base BaseRepository) repository.ConsultationRepository {
	return &consultationRepository{base}
}

const consultationColumns = `
	c.id, c.appointment_id, c.doctor_id, c.patient_id, c.consultation_date,
	c.symptoms, c.diagnosis, c.prescription, c.notes, c.duration,
	c.consultation_type, c.video_room_url, c.created_at, c.updated_at`

func (r *consultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, appointment_id, doctor_id, patient_id, consultation_date,
			symptoms, diagnosis, prescription, notes, duration,
			consultation_type, video_room_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if consultation.ID == uuid.Nil {
		consultation.ID = uuid.New()
	}
	now := time.Now().UTC()
	consultation.CreatedAt = now
	consultation.UpdatedAt = now

	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			consultation.ID,
			consultation.AppointmentID,
			consultation.DoctorID,
			consultation.PatientID,
			consultation.ConsultationDate,
			consultation.Symptoms,
			consultation.Diagnosis,
			consultation.Prescription,
			consultation.Notes,
			consultation.Duration,
			consultation.ConsultationType,
			consultation.VideoRoomURL,
			consultation.CreatedAt,
			consultation.UpdatedAt,
		)
		return translate(err, "create consultation")
	})
}

func (r *consultationRepository) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error) {
	query := `SELECT ` + consultationColumns + `,
			p.first_name AS "patient.first_name",
			p.last_name AS "patient.last_name",
			p.phone AS "patient.phone"
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		WHERE c.id = $1 AND c.doctor_id = $2
	`
	var consultation model.ConsultationWithPatient
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &consultation, query, id, doctorID)
	})
	if err != nil {
		return nil, translate(err, "get consultation")
	}
	return &consultation, nil
}

func (r *consultationRepository) GetByAppointment(ctx context.Context, doctorID, appointmentID uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + `
		FROM consultations c
		WHERE c.appointment_id = $1 AND c.doctor_id = $2
	`
	var consultation model.Consultation
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &consultation, query, appointmentID, doctorID)
	})
	if err != nil {
		return nil, translate(err, "get consultation by appointment")
	}
	return &consultation, nil
}

func (r *consultationRepository) List(ctx context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error) {
	query := `SELECT ` + consultationColumns + `,
			p.first_name AS "patient.first_name",
			p.last_name AS "patient.last_name",
			p.phone AS "patient.phone"
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		WHERE c.doctor_id = $1
		ORDER BY c.consultation_date DESC
	`
	consultations := []*model.ConsultationWithPatient{}
	err := r.read(ctx, func(ctx context.Context) error {
		consultations = consultations[:0]
		return r.db.SelectContext(ctx, &consultations, query, doctorID)
	})
	if err != nil {
		return nil, translate(err, "list consultations")
	}
	return consultations, nil
}

func (r *consultationRepository) ListForPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + `
		FROM consultations c
		WHERE c.doctor_id = $1 AND c.patient_id = $2
		ORDER BY c.consultation_date DESC
	`
	consultations := []*model.Consultation{}
	err := r.read(ctx, func(ctx context.Context) error {
		consultations = consultations[:0]
		return r.db.SelectContext(ctx, &consultations, query, doctorID, patientID)
	})
	if err != nil {
		return nil, translate(err, "list patient consultations")
	}
	return consultations, nil
}

// SaveNotes overwrites the clinical text fields that are set in notes.
func (r *consultationRepository) SaveNotes(ctx context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error) {
	query := `
		UPDATE consultations c
		SET symptoms = COALESCE($1, c.symptoms),
		    diagnosis = COALESCE($2, c.diagnosis),
		    prescription = COALESCE($3, c.prescription),
		    notes = COALESCE($4, c.notes),
		    updated_at = now()
		WHERE c.id = $5 AND c.doctor_id = $6
		RETURNING ` + consultationColumns

	var consultation model.Consultation
	err := r.write(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &consultation, query,
			notes.Symptoms,
			notes.Diagnosis,
			notes.Prescription,
			notes.Notes,
			id,
			doctorID,
		)
	})
	if err != nil {
		return nil, translate(err, "save consultation notes")
	}
	return &consultation, nil
}

func (r *consultationRepository) SetVideoRoomURL(ctx context.Context, doctorID, id uuid.UUID, url string) error {
	query := `
		UPDATE consultations
		SET video_room_url = $1, updated_at = now()
		WHERE id = $2 AND doctor_id = $3
	`
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, url, id, doctorID)
		if err != nil {
			return translate(err, "set video room url")
		}
		return checkAffected(result, "set video room url")
	})
}
