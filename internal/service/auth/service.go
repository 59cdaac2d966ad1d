// Package auth handles account registration and login. Every registered
// account is a donor; admin accounts are provisioned out of band.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	"github.com/jwalitptl/lifeflow-api/pkg/auth"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/security"
)

type Service struct {
	users  repository.UserRepository
	donors repository.DonorRepository
	hasher security.PasswordHasher
	tokens *auth.Manager
	logger *logger.Logger
}

func NewService(
	users repository.UserRepository,
	donors repository.DonorRepository,
	hasher security.PasswordHasher,
	tokens *auth.Manager,
	logger *logger.Logger,
) *Service {
	return &Service{
		users:  users,
		donors: donors,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Register creates the user account and its donor profile.
func (s *Service) Register(ctx context.Context, in *model.RegisterRequest) (*model.User, error) {
	group := model.BloodGroup(in.BloodGroup)
	if !group.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid blood group %q", in.BloodGroup))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.UserRoleDonor,
	}
	user.ID = uuid.New()
	if in.Phone != "" {
		phone := in.Phone
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	donor := &model.Donor{
		UserID:     user.ID,
		BloodGroup: group,
		Available:  true,
	}
	donor.ID = uuid.New()
	if err := s.donors.Create(ctx, donor); err != nil {
		return nil, fmt.Errorf("failed to create donor profile: %w", err)
	}

	s.logger.Info("user registered",
		"user_id", user.ID.String(),
		"blood_group", string(group))
	return user, nil
}

// Login verifies the credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, in *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err == repository.ErrNotFound {
		return nil, apperrors.Unauthorized("invalid credentials", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, in.Password); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials", nil)
	}

	token, err := s.tokens.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.LoginResponse{Token: token, User: user}, nil
}
