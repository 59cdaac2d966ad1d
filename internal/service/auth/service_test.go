package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository/memory"
	pkgauth "github.com/jwalitptl/lifeflow-api/pkg/auth"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/security"
)

func newService(t *testing.T) (*Service, *memory.UserRepository, *memory.DonorRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	donors := memory.NewDonorRepository()
	svc := NewService(
		users, donors,
		security.NewBcryptHasher(4),
		pkgauth.NewManager("test-secret", time.Hour),
		logger.NewLogger(nil),
	)
	return svc, users, donors
}

func registerInput() *model.RegisterRequest {
	return &model.RegisterRequest{
		Name:       "Jane Donor",
		Email:      "jane@lifeflow.test",
		Password:   "correct-horse",
		BloodGroup: "AB-",
	}
}

func TestRegisterCreatesUserAndDonorProfile(t *testing.T) {
	svc, _, donors := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleDonor, user.Role)
	assert.NotEmpty(t, user.PasswordHash)

	donor, err := donors.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BloodGroupABNeg, donor.BloodGroup)
	assert.True(t, donor.Available)
	assert.Nil(t, donor.LastDonationAt)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestRegisterInvalidBloodGroup(t *testing.T) {
	svc, _, _ := newService(t)

	in := registerInput()
	in.BloodGroup = "C+"

	_, err := svc.Register(context.Background(), in)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestLogin(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	resp, err := svc.Login(ctx, &model.LoginRequest{
		Email:    "jane@lifeflow.test",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, registered.ID, resp.User.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "jane@lifeflow.test",
		Password: "wrong",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@lifeflow.test",
		Password: "whatever",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}
