package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentColumns = `
	a.id, a.doctor_id, a.patient_id, a.appointment_date, a.duration,
	a.status, a.type, a.notes, a.created_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, appointment_date, duration,
			status, type, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now().UTC()

	err := r.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			appointment.ID,
			appointment.DoctorID,
			appointment.PatientID,
			appointment.AppointmentDate,
			appointment.Duration,
			appointment.Status,
			appointment.Type,
			appointment.Notes,
			appointment.CreatedAt,
		); err != nil {
			return err
		}
		if event != nil {
			return insertOutboxEvent(ctx, tx, event)
		}
		return nil
	})
	return translate(err, "create appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.id = $1 AND a.doctor_id = $2
	`
	var appointment model.Appointment
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &appointment, query, id, doctorID)
	})
	if err != nil {
		return nil, translate(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListForDoctorInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error) {
	query := `SELECT ` + appointmentColumns + `,
			p.first_name AS "patient.first_name",
			p.last_name AS "patient.last_name",
			p.phone AS "patient.phone"
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		  AND a.appointment_date >= $2
		  AND a.appointment_date <= $3
		ORDER BY a.appointment_date ASC, a.created_at ASC
	`
	appointments := []*model.AppointmentWithPatient{}
	err := r.read(ctx, func(ctx context.Context) error {
		appointments = appointments[:0]
		return r.db.SelectContext(ctx, &appointments, query, doctorID, start, end)
	})
	if err != nil {
		return nil, translate(err, "list appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) ListScheduledOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.status = $2
		  AND a.appointment_date < $4
		  AND a.appointment_date + a.duration * interval '1 minute' > $3
		ORDER BY a.appointment_date ASC
	`
	appointments := []*model.Appointment{}
	err := r.read(ctx, func(ctx context.Context) error {
		appointments = appointments[:0]
		return r.db.SelectContext(ctx, &appointments, query,
			doctorID, model.AppointmentStatusScheduled, start, end)
	})
	if err != nil {
		return nil, translate(err, "check appointment conflicts")
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.doctor_id = $1 AND a.patient_id = $2
		ORDER BY a.appointment_date DESC
	`
	appointments := []*model.Appointment{}
	err := r.read(ctx, func(ctx context.Context) error {
		appointments = appointments[:0]
		return r.db.SelectContext(ctx, &appointments, query, doctorID, patientID)
	})
	if err != nil {
		return nil, translate(err, "list patient appointments")
	}
	return appointments, nil
}

// UpdateStatus moves the appointment from `from` to `to` only if it is still
// in `from`. ErrStatusChanged means another writer got there first.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, from, to model.AppointmentStatus, event *model.OutboxEvent) error {
	query := `
		UPDATE appointments
		SET status = $1
		WHERE id = $2 AND doctor_id = $3 AND status = $4
	`
	err := r.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, to, id, doctorID, from)
		if err != nil {
			return err
		}
		if err := checkAffected(result, "update appointment status"); err != nil {
			return repository.ErrStatusChanged
		}
		if event != nil {
			return insertOutboxEvent(ctx, tx, event)
		}
		return nil
	})
	if errors.Is(err, repository.ErrStatusChanged) {
		return err
	}
	return translate(err, "update appointment status")
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[model.AppointmentStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM appointments
		WHERE doctor_id = $1
		GROUP BY status
	`
	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	err := r.read(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, query, doctorID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	counts := make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
