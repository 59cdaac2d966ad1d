package request

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
	"github.com/jwalitptl/lifeflow-api/internal/service/certificate"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
)

var testNow = time.Now().UTC().Truncate(time.Second)

// dispatcherStub records fan-out messages synchronously.
type dispatcherStub struct {
	msgs []*notification.Message
}

func (d *dispatcherStub) Dispatch(msgs ...*notification.Message) {
	d.msgs = append(d.msgs, msgs...)
}

func (d *dispatcherStub) byType(t model.NotificationType) []*notification.Message {
	var out []*notification.Message
	for _, m := range d.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	certs    *certificate.Service
	users    *memory.UserRepository
	donors   *memory.DonorRepository
	requests *memory.BloodRequestRepository
	certRepo *memory.CertificateRepository
	outbox   *memory.OutboxRepository
	fanout   *dispatcherStub

	admin     *model.User
	requester *model.User
	donorUser *model.User
	donor     *model.Donor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		users:    memory.NewUserRepository(),
		donors:   memory.NewDonorRepository(),
		requests: memory.NewBloodRequestRepository(),
		certRepo: memory.NewCertificateRepository(),
		outbox:   memory.NewOutboxRepository(),
		fanout:   &dispatcherStub{},
	}
	log := logger.NewLogger(nil)

	f.certs = certificate.NewService(f.certRepo, f.donors, f.users, f.fanout, log)
	f.svc = NewService(
		f.requests, f.donors, f.users, f.outbox, f.certs, f.fanout, log,
		eligibility.DefaultCooldownMonths)
	f.svc.now = func() time.Time { return testNow }

	f.admin = newUser("admin@lifeflow.test", model.UserRoleAdmin)
	f.requester = newUser("requester@lifeflow.test", model.UserRoleDonor)
	f.donorUser = newUser("donor@lifeflow.test", model.UserRoleDonor)
	require.NoError(t, f.users.Create(ctx, f.admin))
	require.NoError(t, f.users.Create(ctx, f.requester))
	require.NoError(t, f.users.Create(ctx, f.donorUser))

	f.donor = &model.Donor{
		UserID:     f.donorUser.ID,
		BloodGroup: model.BloodGroupOPos,
		Available:  true,
	}
	f.donor.ID = uuid.New()
	require.NoError(t, f.donors.Create(ctx, f.donor))

	return f
}

func newUser(email string, role model.UserRole) *model.User {
	u := &model.User{
		Name:  "Test User",
		Email: email,
		Role:  role,
	}
	u.ID = uuid.New()
	return u
}

func createInput() *model.CreateBloodRequestRequest {
	return &model.CreateBloodRequestRequest{
		BloodGroup:  "O+",
		Units:       2,
		Urgency:     "high",
		ScheduledAt: testNow.Add(24 * time.Hour),
		Hospital:    "City General",
		Location:    "Springfield",
	}
}

func (f *fixture) submit(t *testing.T) *model.BloodRequest {
	t.Helper()
	req, err := f.svc.Submit(context.Background(), f.requester.ID, createInput())
	require.NoError(t, err)
	return req
}

func (f *fixture) submitApproved(t *testing.T) *model.BloodRequest {
	t.Helper()
	req := f.submit(t)
	approved, err := f.svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	return approved
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	f := newFixture(t)

	req := f.submit(t)

	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Equal(t, model.BloodGroupOPos, req.BloodGroup)
	assert.Nil(t, req.AssignedDonorID)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, stored.Status)

	// Admins are notified of the new request.
	msgs := f.fanout.byType(model.NotificationTypeRequestCreated)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Recipients, 1)
	assert.Equal(t, f.admin.ID, msgs[0].Recipients[0].UserID)

	events, err := f.outbox.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "request.created", events[0].EventType)
}

func TestSubmitRejectsPastSchedule(t *testing.T) {
	f := newFixture(t)

	in := createInput()
	in.ScheduledAt = testNow.Add(-time.Hour)

	_, err := f.svc.Submit(context.Background(), f.requester.ID, in)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestSubmitRejectsInvalidUnits(t *testing.T) {
	f := newFixture(t)

	in := createInput()
	in.Units = 11

	_, err := f.svc.Submit(context.Background(), f.requester.ID, in)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestApproveNotifiesEligibleDonors(t *testing.T) {
	f := newFixture(t)

	// A second donor of the same group, still in cooldown.
	coolingUser := newUser("cooling@lifeflow.test", model.UserRoleDonor)
	require.NoError(t, f.users.Create(context.Background(), coolingUser))
	last := testNow.AddDate(0, -1, 0)
	cooling := &model.Donor{
		UserID:         coolingUser.ID,
		BloodGroup:     model.BloodGroupOPos,
		Available:      true,
		LastDonationAt: &last,
	}
	cooling.ID = uuid.New()
	require.NoError(t, f.donors.Create(context.Background(), cooling))

	req := f.submit(t)
	approved, err := f.svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, approved.Status)

	msgs := f.fanout.byType(model.NotificationTypeRequestApproved)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Recipients, 1, "cooling donor must be excluded")
	assert.Equal(t, f.donorUser.ID, msgs[0].Recipients[0].UserID)
}

func TestApproveTwiceFails(t *testing.T) {
	f := newFixture(t)
	req := f.submitApproved(t)

	_, err := f.svc.Approve(context.Background(), req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestRejectRecordsReason(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t)

	rejected, err := f.svc.Reject(context.Background(), req.ID, "duplicate request")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectReason)
	assert.Equal(t, "duplicate request", *rejected.RejectReason)

	// Rejected is terminal.
	_, err = f.svc.Approve(context.Background(), req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestMarkDonatedRequiresApprovedStatus(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t)

	_, err := f.svc.MarkDonated(context.Background(), req.ID, "photo.jpg")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestMarkDonatedRequiresAssignedDonor(t *testing.T) {
	f := newFixture(t)
	req := f.submitApproved(t)

	_, err := f.svc.MarkDonated(context.Background(), req.ID, "photo.jpg")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPrecondition))
}

func TestMarkDonatedRequiresPhoto(t *testing.T) {
	f := newFixture(t)
	req := f.submitApproved(t)

	_, err := f.svc.MarkDonated(context.Background(), req.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestMarkDonatedCompletesWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitApproved(t)

	require.NoError(t, f.requests.SetAssignment(ctx, req.ID, f.donor.ID, testNow))

	done, err := f.svc.MarkDonated(ctx, req.ID, "proof.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDonated, done.Status)
	require.NotNil(t, done.ProofPhotoRef)
	assert.Equal(t, "proof.jpg", *done.ProofPhotoRef)

	// The donor's cooldown restarts.
	d, err := f.donors.Get(ctx, f.donor.ID)
	require.NoError(t, err)
	require.NotNil(t, d.LastDonationAt)
	assert.True(t, d.LastDonationAt.Equal(testNow))

	// Exactly one pending certificate exists for the donation.
	cert, err := f.certRepo.GetByDonorAndRequest(ctx, f.donor.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusPending, cert.Status)
	assert.Nil(t, cert.Number)

	msgs := f.fanout.byType(model.NotificationTypeDonationComplete)
	require.Len(t, msgs, 1)
	assert.Equal(t, f.donorUser.ID, msgs[0].Recipients[0].UserID)
}

func TestMarkDonatedTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitApproved(t)
	require.NoError(t, f.requests.SetAssignment(ctx, req.ID, f.donor.ID, testNow))

	_, err := f.svc.MarkDonated(ctx, req.ID, "proof.jpg")
	require.NoError(t, err)

	_, err = f.svc.MarkDonated(ctx, req.ID, "proof.jpg")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestListOpenForDonorFiltersEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submitApproved(t)

	// Matching group and approved: visible.
	open, err := f.svc.ListOpenForDonor(ctx, f.donor.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	// After donating, the cooldown hides open requests.
	require.NoError(t, f.donors.SetLastDonation(ctx, f.donor.ID, testNow.AddDate(0, -1, 0)))
	open, err = f.svc.ListOpenForDonor(ctx, f.donor.ID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDeleteHidesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submit(t)

	require.NoError(t, f.svc.Delete(ctx, req.ID))

	_, err := f.svc.Get(ctx, req.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.submit(t)
	}
	f.submitApproved(t)

	pending := model.RequestStatusPending
	listed, err := f.svc.List(ctx, &model.BloodRequestFilters{Status: &pending}, nil)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	page1, err := f.svc.List(ctx, nil, &model.Pagination{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page1, 3)

	page2, err := f.svc.List(ctx, nil, &model.Pagination{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}
