package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

type authUserRepository struct {
	BaseRepository
}

func NewAuthUserRepository(base BaseRepository) repository.AuthUserRepository {
	return &authUserRepository{base}
}

func (r *authUserRepository) Create(ctx context.Context, user *model.AuthUser) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = time.Now().UTC()

	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO auth_users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			user.ID, user.Email, user.PasswordHash, user.CreatedAt)
		return translate(err, "create auth user")
	})
}

func (r *authUserRepository) GetByEmail(ctx context.Context, email string) (*model.AuthUser, error) {
	var user model.AuthUser
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &user,
			`SELECT id, email, password_hash, created_at FROM auth_users WHERE email = $1`,
			strings.ToLower(strings.TrimSpace(email)))
	})
	if err != nil {
		return nil, translate(err, "get auth user")
	}
	return &user, nil
}

func (r *authUserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE auth_users SET email = $1 WHERE id = $2`,
			strings.ToLower(strings.TrimSpace(email)), id)
		if err != nil {
			return translate(err, "update auth user email")
		}
		return checkAffected(result, "update auth user email")
	})
}

func (r *authUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
		return translate(err, "delete auth user")
	})
}

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (id, email, first_name, last_name, phone, speciality, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	doctor.Email = strings.ToLower(strings.TrimSpace(doctor.Email))
	doctor.CreatedAt = time.Now().UTC()

	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			doctor.ID,
			doctor.Email,
			doctor.FirstName,
			doctor.LastName,
			doctor.Phone,
			doctor.Speciality,
			doctor.CreatedAt,
		)
		return translate(err, "create doctor")
	})
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &doctor, `
			SELECT id, email, first_name, last_name, phone, speciality, created_at
			FROM doctors WHERE id = $1`, id)
	})
	if err != nil {
		return nil, translate(err, "get doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET email = $1, first_name = $2, last_name = $3, phone = $4, speciality = $5
		WHERE id = $6
	`
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query,
			strings.ToLower(strings.TrimSpace(doctor.Email)),
			doctor.FirstName,
			doctor.LastName,
			doctor.Phone,
			doctor.Speciality,
			doctor.ID,
		)
		if err != nil {
			return translate(err, "update doctor")
		}
		return checkAffected(result, "update doctor")
	})
}

func (r *doctorRepository) GetSettings(ctx context.Context, doctorID uuid.UUID) (*model.DoctorSettings, error) {
	var settings model.DoctorSettings
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &settings, `
			SELECT doctor_id, default_duration, buffer_minutes, consultation_price, currency, updated_at
			FROM doctor_settings WHERE doctor_id = $1`, doctorID)
	})
	if err != nil {
		return nil, translate(err, "get doctor settings")
	}
	return &settings, nil
}

func (r *doctorRepository) UpsertSettings(ctx context.Context, settings *model.DoctorSettings) error {
	query := `
		INSERT INTO doctor_settings (doctor_id, default_duration, buffer_minutes, consultation_price, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id) DO UPDATE
		SET default_duration = EXCLUDED.default_duration,
		    buffer_minutes = EXCLUDED.buffer_minutes,
		    consultation_price = EXCLUDED.consultation_price,
		    currency = EXCLUDED.currency,
		    updated_at = EXCLUDED.updated_at
	`
	settings.UpdatedAt = time.Now().UTC()

	return r.write(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			settings.DoctorID,
			settings.DefaultDuration,
			settings.BufferMinutes,
			settings.ConsultationPrice,
			settings.Currency,
			settings.UpdatedAt,
		)
		return translate(err, "save doctor settings")
	})
}
