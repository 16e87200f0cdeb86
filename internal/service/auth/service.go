package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/email"
	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/pkg/auth"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/format"
	"github.com/famalink/telemed-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	userRepo   repository.AuthUserRepository
	doctorRepo repository.DoctorRepository
	hasher     security.PasswordHasher
	jwtSvc     auth.JWTService
	revoked    RevocationStore
	emailSvc   email.Service
}

func NewService(
	userRepo repository.AuthUserRepository,
	doctorRepo repository.DoctorRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	revoked RevocationStore,
	emailSvc email.Service,
) *Service {
	return &Service{
		userRepo:   userRepo,
		doctorRepo: doctorRepo,
		hasher:     hasher,
		jwtSvc:     jwtSvc,
		revoked:    revoked,
		emailSvc:   emailSvc,
	}
}

// Register creates the identity and then the doctor profile. A failed
// profile insert deletes the identity again.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.Doctor, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" {
		return nil, apperrors.NewBadRequest("email is required", nil)
	}
	if !format.IsValidIvorianPhone(req.Phone) {
		return nil, apperrors.NewBadRequest("phone must be an Ivorian number (+225 or 0 followed by 8 to 10 digits)", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.NewBadRequest(err.Error(), err)
		}
		return nil, apperrors.NewInternal(err)
	}

	user := &model.AuthUser{
		ID:           uuid.New(),
		Email:        emailAddr,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBadRequest("email already registered", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	doctor := &model.Doctor{
		ID:         user.ID,
		Email:      emailAddr,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Phone:      format.StripSpaces(req.Phone),
		Speciality: strings.TrimSpace(req.Speciality),
	}
	if err := s.doctorRepo.Create(ctx, doctor); err != nil {
		if delErr := s.userRepo.Delete(ctx, user.ID); delErr != nil {
			log.Error().Err(delErr).Str("user_id", user.ID.String()).Msg("Failed to remove identity after profile error")
		}
		return nil, apperrors.NewInternal(err)
	}

	if err := s.emailSvc.SendWelcome(ctx, doctor.Email, doctor.DisplayName()); err != nil {
		log.Warn().Err(err).Str("doctor_id", doctor.ID.String()).Msg("Failed to send welcome email")
	}

	log.Info().Str("doctor_id", doctor.ID.String()).Msg("Doctor registered")
	return doctor, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(ErrInvalidCredentials.Error(), ErrInvalidCredentials)
		}
		return nil, apperrors.NewInternal(err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.NewUnauthorized(ErrInvalidCredentials.Error(), err)
	}

	doctor, err := s.doctorRepo.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("doctor profile missing", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	token, claims, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &model.Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		Doctor:      doctor,
	}, nil
}

// Logout revokes the token until it expires.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return apperrors.NewUnauthorized("", nil)
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.NewUnavailable("session store", err)
	}
	return nil
}

// Authenticate resolves a bearer token to its claims, refusing signed-out tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorized("token expired", err)
		}
		return nil, apperrors.NewUnauthorized("invalid token", err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.NewUnavailable("session store", err)
	}
	if revoked {
		return nil, apperrors.NewUnauthorized("token revoked", nil)
	}
	return claims, nil
}

// CurrentDoctor returns the doctor behind a valid token.
func (s *Service) CurrentDoctor(ctx context.Context, token string) (*model.Doctor, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctorRepo.Get(ctx, claims.DoctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("doctor not found", err)
		}
		return nil, apperrors.NewInternal(err)
	}
	return doctor, nil
}
