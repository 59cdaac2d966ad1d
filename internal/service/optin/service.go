// Package optin records donors volunteering for approved requests. Opt-ins
// are append-only; a donor never opts out, they simply are not assigned.
package optin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/eligibility"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/metrics"
)

type Service struct {
	optIns   repository.OptInRepository
	requests repository.BloodRequestRepository
	donors   repository.DonorRepository
	users    repository.UserRepository
	fanout   notification.Dispatcher
	logger   *logger.Logger

	cooldownMonths int
	now            func() time.Time
}

func NewService(
	optIns repository.OptInRepository,
	requests repository.BloodRequestRepository,
	donors repository.DonorRepository,
	users repository.UserRepository,
	fanout notification.Dispatcher,
	logger *logger.Logger,
	cooldownMonths int,
) *Service {
	if cooldownMonths <= 0 {
		cooldownMonths = eligibility.DefaultCooldownMonths
	}
	return &Service{
		optIns:         optIns,
		requests:       requests,
		donors:         donors,
		users:          users,
		fanout:         fanout,
		logger:         logger,
		cooldownMonths: cooldownMonths,
		now:            time.Now,
	}
}

// OptIn adds the donor to the request's candidate pool. Gates are checked in
// a fixed order so a donor failing several always sees the same error:
// eligibility, then request availability, then blood group, then duplicates.
func (s *Service) OptIn(ctx context.Context, donorID, requestID uuid.UUID) (*model.OptIn, error) {
	donor, err := s.donors.Get(ctx, donorID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}

	now := s.now()
	if !eligibility.CanDonate(donor.LastDonationAt, now, s.cooldownMonths) {
		next := eligibility.NextEligibleAt(donor.LastDonationAt, now, s.cooldownMonths)
		metrics.OptInsRejected.WithLabelValues("not_eligible").Inc()
		return nil, apperrors.NotEligible(
			fmt.Sprintf("donor is in cooldown until %s", next.Format("2006-01-02")))
	}

	req, err := s.requests.Get(ctx, requestID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("blood request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blood request: %w", err)
	}
	if req.Status != model.RequestStatusApproved {
		metrics.OptInsRejected.WithLabelValues("not_available").Inc()
		return nil, apperrors.RequestNotAvailable(
			fmt.Sprintf("request is %s, only approved requests accept opt-ins", req.Status))
	}

	if donor.BloodGroup != req.BloodGroup {
		metrics.OptInsRejected.WithLabelValues("group_mismatch").Inc()
		return nil, apperrors.BloodGroupMismatch(string(donor.BloodGroup), string(req.BloodGroup))
	}

	exists, err := s.optIns.Exists(ctx, donorID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing opt-in: %w", err)
	}
	if exists {
		metrics.OptInsRejected.WithLabelValues("duplicate").Inc()
		return nil, apperrors.DuplicateOptIn()
	}

	optIn := &model.OptIn{
		ID:        uuid.New(),
		DonorID:   donorID,
		RequestID: requestID,
		CreatedAt: now,
	}
	if err := s.optIns.Create(ctx, optIn); err != nil {
		if err == repository.ErrDuplicate {
			// Concurrent opt-in won the insert race.
			metrics.OptInsRejected.WithLabelValues("duplicate").Inc()
			return nil, apperrors.DuplicateOptIn()
		}
		return nil, fmt.Errorf("failed to create opt-in: %w", err)
	}
	metrics.OptInsCreated.Inc()

	s.notifyAdmins(ctx, donor, req)

	s.logger.Info("donor opted in",
		"donor_id", donorID.String(),
		"request_id", requestID.String())
	return optIn, nil
}

// ListByDonor returns the donor's opt-in history.
func (s *Service) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.OptIn, error) {
	return s.optIns.ListByDonor(ctx, donorID)
}

func (s *Service) notifyAdmins(ctx context.Context, donor *model.Donor, req *model.BloodRequest) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list admins for opt-in fan-out")
		return
	}
	recipients := make([]notification.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, notification.Recipient{UserID: a.ID, Email: a.Email, Admin: true})
	}

	donorName := ""
	if user, err := s.users.Get(ctx, donor.UserID); err == nil {
		donorName = user.Name
	}

	s.fanout.Dispatch(&notification.Message{
		Recipients: recipients,
		Type:       model.NotificationTypeDonorOptedIn,
		Title:      "Donor volunteered",
		Body:       fmt.Sprintf("%s (%s) opted in for the request at %s", donorName, donor.BloodGroup, req.Hospital),
		Metadata: model.JSONMap{
			"request_id": req.ID.String(),
			"donor_id":   donor.ID.String(),
		},
	})
}
