package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const patientColumns = `
	p.id, p.doctor_id, p.first_name, p.last_name, p.phone,
	p.date_of_birth, p.gender, p.address, p.created_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, doctor_id, first_name, last_name, phone,
			date_of_birth, gender, address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()

	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			patient.ID,
			patient.DoctorID,
			patient.FirstName,
			patient.LastName,
			patient.Phone,
			patient.DateOfBirth,
			patient.Gender,
			patient.Address,
			patient.CreatedAt,
		)
		return translate(err, "create patient")
	})
}

func (r *patientRepository) Get(ctx context.Context, doctorID, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + `
		FROM patients p
		WHERE p.id = $1 AND p.doctor_id = $2
	`
	var patient model.Patient
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &patient, query, id, doctorID)
	})
	if err != nil {
		return nil, translate(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, phone = $3,
		    date_of_birth = $4, gender = $5, address = $6
		WHERE id = $7 AND doctor_id = $8
	`
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query,
			patient.FirstName,
			patient.LastName,
			patient.Phone,
			patient.DateOfBirth,
			patient.Gender,
			patient.Address,
			patient.ID,
			patient.DoctorID,
		)
		if err != nil {
			return translate(err, "update patient")
		}
		return checkAffected(result, "update patient")
	})
}

func (r *patientRepository) List(ctx context.Context, doctorID uuid.UUID, filter model.PatientFilter) ([]*model.PatientListItem, error) {
	var (
		conditions = []string{"p.doctor_id = $1"}
		args       = []interface{}{doctorID}
	)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR p.phone ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + patientColumns + `,
			(SELECT COUNT(*) FROM consultations c
			  WHERE c.patient_id = p.id AND c.doctor_id = p.doctor_id) AS consultation_count,
			(SELECT MAX(a.appointment_date) FROM appointments a
			  WHERE a.patient_id = p.id AND a.doctor_id = p.doctor_id) AS last_appointment
		FROM patients p
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY p.last_name ASC, p.first_name ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	patients := []*model.PatientListItem{}
	err := r.read(ctx, func(ctx context.Context) error {
		patients = patients[:0]
		return r.db.SelectContext(ctx, &patients, query, args...)
	})
	if err != nil {
		return nil, translate(err, "list patients")
	}
	return patients, nil
}

func (r *patientRepository) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var count int
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM patients WHERE doctor_id = $1`, doctorID)
	})
	if err != nil {
		return 0, translate(err, "count patients")
	}
	return count, nil
}

// Delete locks the patient row first; appointment inserts referencing the
// patient wait on that lock, so no booking can slip in between the check and
// the delete.
func (r *patientRepository) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	err := r.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked,
			`SELECT id FROM patients WHERE id = $1 AND doctor_id = $2 FOR UPDATE`, id, doctorID); err != nil {
			return err
		}

		var scheduled int
		if err := tx.GetContext(ctx, &scheduled,
			`SELECT COUNT(*) FROM appointments WHERE patient_id = $1 AND doctor_id = $2 AND status = $3`,
			id, doctorID, model.AppointmentStatusScheduled); err != nil {
			return err
		}
		if scheduled > 0 {
			return repository.ErrPatientHasScheduled
		}

		statements := []string{
			`DELETE FROM consultations WHERE patient_id = $1 AND doctor_id = $2`,
			`DELETE FROM appointments WHERE patient_id = $1 AND doctor_id = $2`,
			`DELETE FROM patients WHERE id = $1 AND doctor_id = $2`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, id, doctorID); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, repository.ErrPatientHasScheduled) {
		return err
	}
	return translate(err, "delete patient")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
