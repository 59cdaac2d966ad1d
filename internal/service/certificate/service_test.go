package certificate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository/memory"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
)

type dispatcherStub struct {
	msgs []*notification.Message
}

func (d *dispatcherStub) Dispatch(msgs ...*notification.Message) {
	d.msgs = append(d.msgs, msgs...)
}

type fixture struct {
	svc    *Service
	certs  *memory.CertificateRepository
	donors *memory.DonorRepository
	users  *memory.UserRepository
	fanout *dispatcherStub

	donor     *model.Donor
	donorUser *model.User
	req       *model.BloodRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		certs:  memory.NewCertificateRepository(),
		donors: memory.NewDonorRepository(),
		users:  memory.NewUserRepository(),
		fanout: &dispatcherStub{},
	}
	f.svc = NewService(f.certs, f.donors, f.users, f.fanout, logger.NewLogger(nil))

	f.donorUser = &model.User{Name: "Donor", Email: "donor@lifeflow.test", Role: model.UserRoleDonor}
	f.donorUser.ID = uuid.New()
	require.NoError(t, f.users.Create(ctx, f.donorUser))

	f.donor = &model.Donor{
		UserID:     f.donorUser.ID,
		BloodGroup: model.BloodGroupBPos,
		Available:  true,
	}
	f.donor.ID = uuid.New()
	require.NoError(t, f.donors.Create(ctx, f.donor))

	donorID := f.donor.ID
	f.req = &model.BloodRequest{
		RequesterID:     uuid.New(),
		BloodGroup:      model.BloodGroupBPos,
		Units:           3,
		Status:          model.RequestStatusDonated,
		AssignedDonorID: &donorID,
	}
	f.req.ID = uuid.New()

	return f
}

func (f *fixture) issue(t *testing.T) *model.Certificate {
	t.Helper()
	cert, err := f.svc.IssueForDonation(context.Background(), f.req, time.Now())
	require.NoError(t, err)
	return cert
}

func TestIssueForDonation(t *testing.T) {
	f := newFixture(t)

	cert := f.issue(t)
	assert.Equal(t, model.CertificateStatusPending, cert.Status)
	assert.Equal(t, f.donor.ID, cert.DonorID)
	assert.Equal(t, f.req.ID, cert.RequestID)
	assert.Equal(t, f.req.Units, cert.Units)
	assert.Equal(t, f.req.BloodGroup, cert.BloodGroup)
	assert.Nil(t, cert.Number, "number is allocated at generation, not issuance")
}

func TestIssueForDonationIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t)
	second := f.issue(t)
	assert.Equal(t, first.ID, second.ID)

	certs, err := f.certs.ListByDonor(context.Background(), f.donor.ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestGenerateRequiresApproval(t *testing.T) {
	f := newFixture(t)
	cert := f.issue(t)

	_, err := f.svc.Generate(context.Background(), cert.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestApproveThenGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issue(t)

	approved, err := f.svc.Approve(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusApproved, approved.Status)

	generated, err := f.svc.Generate(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusGenerated, generated.Status)
	require.NotNil(t, generated.Number)
	assert.Equal(t, fmt.Sprintf("LF-%d-%06d", cert.DonationDate.Year(), 1), *generated.Number)

	// The donor is told their certificate is ready.
	require.Len(t, f.fanout.msgs, 1)
	assert.Equal(t, model.NotificationTypeCertificateReady, f.fanout.msgs[0].Type)
	assert.Equal(t, f.donorUser.ID, f.fanout.msgs[0].Recipients[0].UserID)
}

func TestApproveTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issue(t)

	_, err := f.svc.Approve(ctx, cert.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, cert.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

// Generating twice returns the same certificate with the same number.
func TestGenerateIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issue(t)

	_, err := f.svc.Approve(ctx, cert.ID)
	require.NoError(t, err)

	first, err := f.svc.Generate(ctx, cert.ID)
	require.NoError(t, err)
	second, err := f.svc.Generate(ctx, cert.ID)
	require.NoError(t, err)

	require.NotNil(t, second.Number)
	assert.Equal(t, *first.Number, *second.Number)

	require.Len(t, f.fanout.msgs, 1, "only the first generation notifies")
}

func TestApproveAndGenerate(t *testing.T) {
	f := newFixture(t)
	cert := f.issue(t)

	generated, err := f.svc.ApproveAndGenerate(context.Background(), cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusGenerated, generated.Status)
	assert.NotNil(t, generated.Number)
}

func TestSerialNumbersAreSequential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.issue(t)
	firstGen, err := f.svc.ApproveAndGenerate(ctx, first.ID)
	require.NoError(t, err)

	// A second donation by another donor.
	otherDonorID := uuid.New()
	otherUser := &model.User{Name: "Other", Email: "other@lifeflow.test", Role: model.UserRoleDonor}
	otherUser.ID = uuid.New()
	require.NoError(t, f.users.Create(ctx, otherUser))
	other := &model.Donor{UserID: otherUser.ID, BloodGroup: model.BloodGroupBPos, Available: true}
	other.ID = otherDonorID
	require.NoError(t, f.donors.Create(ctx, other))

	req2 := *f.req
	req2.ID = uuid.New()
	req2.AssignedDonorID = &otherDonorID
	second, err := f.svc.IssueForDonation(ctx, &req2, time.Now())
	require.NoError(t, err)
	secondGen, err := f.svc.ApproveAndGenerate(ctx, second.ID)
	require.NoError(t, err)

	assert.NotEqual(t, *firstGen.Number, *secondGen.Number)
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issue(t)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, cert.ID, pending[0].ID)

	_, err = f.svc.Approve(ctx, cert.ID)
	require.NoError(t, err)

	pending, err = f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
