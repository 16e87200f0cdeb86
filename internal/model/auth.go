package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthUser is the credential record behind a doctor. Its ID is the doctor ID.
type AuthUser struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	FirstName  string `json:"firstName" binding:"required,max=100"`
	LastName   string `json:"lastName" binding:"required,max=100"`
	Phone      string `json:"phone" binding:"required,ci_phone"`
	Speciality string `json:"speciality" binding:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterResponse struct {
	Message string  `json:"message"`
	User    *Doctor `json:"user"`
}

type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Doctor      *Doctor   `json:"doctor"`
}
