package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// StaffService provisions staff accounts.
type StaffService struct {
	repo ports.StaffRepository
	log  zerolog.Logger
}

var _ ports.StaffService = (*StaffService)(nil)

func NewStaffService(repo ports.StaffRepository, log zerolog.Logger) *StaffService {
	return &StaffService{repo: repo, log: log}
}

// Create hashes the password and optional PIN and stores the account.
func (s *StaffService) Create(ctx context.Context, in ports.CreateStaffInput) (*domain.UserProfile, error) {
	name := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || !domain.ValidEmail(email) || len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidInput
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if in.Pin != "" && !validPin(in.Pin) {
		return nil, domain.ErrInvalidInput
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	var pinHash []byte
	if in.Pin != "" {
		if pinHash, err = bcrypt.GenerateFromPassword([]byte(in.Pin), bcrypt.DefaultCost); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	account := &domain.StaffAccount{
		Profile: domain.UserProfile{
			FullName:  name,
			Role:      role,
			Email:     email,
			Phone:     in.Phone,
			Address:   in.Address,
			AvatarURL: in.AvatarURL,
		},
		PasswordHash: string(passwordHash),
		PinHash:      string(pinHash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.Profile.ID).Str("role", string(role)).Msg("staff account created")
	return &created.Profile, nil
}

// validPin accepts exactly four decimal digits.
func validPin(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
