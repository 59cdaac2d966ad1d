package optin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifeflow-api/internal/eligibility"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository/memory"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
)

var testNow = time.Now().UTC().Truncate(time.Second)

type dispatcherStub struct {
	msgs []*notification.Message
}

func (d *dispatcherStub) Dispatch(msgs ...*notification.Message) {
	d.msgs = append(d.msgs, msgs...)
}

type fixture struct {
	svc      *Service
	optIns   *memory.OptInRepository
	requests *memory.BloodRequestRepository
	donors   *memory.DonorRepository
	users    *memory.UserRepository
	fanout   *dispatcherStub

	admin *model.User
	donor *model.Donor
	req   *model.BloodRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		optIns:   memory.NewOptInRepository(),
		requests: memory.NewBloodRequestRepository(),
		donors:   memory.NewDonorRepository(),
		users:    memory.NewUserRepository(),
		fanout:   &dispatcherStub{},
	}
	f.svc = NewService(
		f.optIns, f.requests, f.donors, f.users, f.fanout, logger.NewLogger(nil),
		eligibility.DefaultCooldownMonths)
	f.svc.now = func() time.Time { return testNow }

	f.admin = &model.User{Name: "Admin", Email: "admin@lifeflow.test", Role: model.UserRoleAdmin}
	f.admin.ID = uuid.New()
	require.NoError(t, f.users.Create(ctx, f.admin))

	donorUser := &model.User{Name: "Donor", Email: "donor@lifeflow.test", Role: model.UserRoleDonor}
	donorUser.ID = uuid.New()
	require.NoError(t, f.users.Create(ctx, donorUser))

	f.donor = &model.Donor{
		UserID:     donorUser.ID,
		BloodGroup: model.BloodGroupOPos,
		Available:  true,
	}
	f.donor.ID = uuid.New()
	require.NoError(t, f.donors.Create(ctx, f.donor))
	f.optIns.RegisterDonorIdentity(f.donor.ID, donorUser.ID, donorUser.Name, f.donor.BloodGroup)

	f.req = &model.BloodRequest{
		RequesterID: uuid.New(),
		BloodGroup:  model.BloodGroupOPos,
		Units:       2,
		Urgency:     model.UrgencyHigh,
		ScheduledAt: testNow.Add(24 * time.Hour),
		Hospital:    "City General",
		Location:    "Springfield",
		Status:      model.RequestStatusApproved,
	}
	f.req.ID = uuid.New()
	require.NoError(t, f.requests.Create(ctx, f.req))

	return f
}

func TestOptInHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	optIn, err := f.svc.OptIn(ctx, f.donor.ID, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, f.donor.ID, optIn.DonorID)
	assert.Equal(t, f.req.ID, optIn.RequestID)

	exists, err := f.optIns.Exists(ctx, f.donor.ID, f.req.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// Admins hear about the volunteer.
	require.Len(t, f.fanout.msgs, 1)
	assert.Equal(t, model.NotificationTypeDonorOptedIn, f.fanout.msgs[0].Type)
	assert.Equal(t, f.admin.ID, f.fanout.msgs[0].Recipients[0].UserID)
}

func TestOptInRejectsCoolingDonor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.donors.SetLastDonation(ctx, f.donor.ID, testNow.AddDate(0, -1, 0)))

	_, err := f.svc.OptIn(ctx, f.donor.ID, f.req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotEligible))

	exists, _ := f.optIns.Exists(ctx, f.donor.ID, f.req.ID)
	assert.False(t, exists, "rejected opt-in must not leave a row")
}

func TestOptInRejectsUnapprovedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []model.RequestStatus{
		model.RequestStatusPending,
		model.RequestStatusRejected,
		model.RequestStatusDonated,
	} {
		req := *f.req
		req.ID = uuid.New()
		req.Status = status
		require.NoError(t, f.requests.Create(ctx, &req))

		_, err := f.svc.OptIn(ctx, f.donor.ID, req.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrRequestNotAvailable), "status %s", status)
	}
}

func TestOptInRejectsGroupMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := *f.req
	req.ID = uuid.New()
	req.BloodGroup = model.BloodGroupABNeg
	require.NoError(t, f.requests.Create(ctx, &req))

	_, err := f.svc.OptIn(ctx, f.donor.ID, req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBloodGroupMismatch))

	exists, _ := f.optIns.Exists(ctx, f.donor.ID, req.ID)
	assert.False(t, exists)
}

func TestOptInRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OptIn(ctx, f.donor.ID, f.req.ID)
	require.NoError(t, err)

	_, err = f.svc.OptIn(ctx, f.donor.ID, f.req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrDuplicateOptIn))
}

// The eligibility gate runs before the availability gate: a cooling donor
// opting into a pending request is told about the cooldown.
func TestOptInGateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.donors.SetLastDonation(ctx, f.donor.ID, testNow.AddDate(0, -1, 0)))

	req := *f.req
	req.ID = uuid.New()
	req.Status = model.RequestStatusPending
	require.NoError(t, f.requests.Create(ctx, &req))

	_, err := f.svc.OptIn(ctx, f.donor.ID, req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotEligible))
}

func TestListByDonor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OptIn(ctx, f.donor.ID, f.req.ID)
	require.NoError(t, err)

	history, err := f.svc.ListByDonor(ctx, f.donor.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, f.req.ID, history[0].RequestID)
}
